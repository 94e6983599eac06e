package services

import (
	"fmt"
	"math/rand"
	"regexp"
	"time"

	"github.com/autovendas/lead-gateway/internal/store"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/autovendas/lead-gateway/pkg/redis"
)

// DefaultGreetingTTL is the per-phone window within which only one
// greeting is sent.
const DefaultGreetingTTL = 15 * time.Minute

const greetingKeyPrefix = "greeted:"

var greetingRe = regexp.MustCompile(`(?i)^\s*(oi+|ol[áa]+|opa|e\s*a[íi]|eai|bom\s+dia|boa\s+tarde|boa\s+noite|hey|hello)[\s!.,?]*$`)

// IsGreeting reports whether the message is a bare salutation with no
// actual content.
func IsGreeting(text string) bool {
	return greetingRe.MatchString(text)
}

var (
	morningGreetings = []string{
		"Bom dia%s! Tudo bem? Sou o assistente da concessionária. Como posso ajudar?",
		"Bom dia%s! Que bom falar com você. Procurando algum modelo específico?",
	}
	afternoonGreetings = []string{
		"Boa tarde%s! Tudo certo? Posso te ajudar com nossas ofertas?",
		"Boa tarde%s! Seja bem-vindo. Quer saber de algum modelo em especial?",
	}
	eveningGreetings = []string{
		"Boa noite%s! Tudo bem? Estou aqui para ajudar com o que precisar.",
		"Boa noite%s! Obrigado pelo contato. Como posso ajudar?",
	}
)

// GreetingCache rate limits salutations per phone using a redis SETNX
// with TTL, replacing the old in-process map so the window survives
// restarts and is shared across instances.
type GreetingCache struct {
	redis redis.Adapter
	ttl   time.Duration
	pick  func(n int) int
}

func NewGreetingCache(adapter redis.Adapter, ttl time.Duration) *GreetingCache {
	if ttl <= 0 {
		ttl = DefaultGreetingTTL
	}
	return &GreetingCache{redis: adapter, ttl: ttl, pick: rand.Intn}
}

// ShouldGreet atomically claims the greeting slot for a phone. True means
// no greeting was sent within the TTL and this caller now owns the slot.
// On a redis failure it degrades to false: skipping a greeting is cheaper
// than spamming one per message.
func (g *GreetingCache) ShouldGreet(phone string) bool {
	key := greetingKeyPrefix + store.NormalizePhone(phone)
	value := []byte(fmt.Sprintf("%d", time.Now().Unix()))
	acquired, err := g.redis.SetNX(key, value, g.ttl)
	if err != nil {
		logger.Warn("greeting cache unavailable", "phone", phone, "error", err)
		return false
	}
	return acquired
}

// Greeting picks a time-of-day salutation, optionally addressed by name.
func (g *GreetingCache) Greeting(now time.Time, name string) string {
	suffix := ""
	if name != "" {
		suffix = ", " + name
	}
	var pool []string
	switch hour := now.Hour(); {
	case hour >= 5 && hour < 12:
		pool = morningGreetings
	case hour >= 12 && hour < 18:
		pool = afternoonGreetings
	default:
		pool = eveningGreetings
	}
	return fmt.Sprintf(pool[g.pick(len(pool))], suffix)
}
