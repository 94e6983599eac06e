package services

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/autovendas/lead-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdapter(t *testing.T) (redis.Adapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := redis.NewAdapter(t.Name(), "lead_gateway:", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return adapter, mr
}

func TestIsGreeting(t *testing.T) {
	greetings := []string{
		"oi", "Oi!", "OIII", "olá", "ola", "Olá!!", "opa",
		"e aí", "eai", "bom dia", "Boa tarde", "boa noite", "  oi  ",
	}
	for _, in := range greetings {
		assert.True(t, IsGreeting(in), "expected %q to be a greeting", in)
	}

	notGreetings := []string{
		"oi, quero saber do Toro",
		"bom dia, tem Strada?",
		"quero comprar",
		"",
	}
	for _, in := range notGreetings {
		assert.False(t, IsGreeting(in), "expected %q not to be a greeting", in)
	}
}

func TestGreetingCache_ShouldGreet(t *testing.T) {
	t.Run("one greeting per phone per window", func(t *testing.T) {
		adapter, mr := newTestAdapter(t)
		g := NewGreetingCache(adapter, 15*time.Minute)

		assert.True(t, g.ShouldGreet("whatsapp:+5511999990000"))
		// Same phone in a different format maps to the same slot.
		assert.False(t, g.ShouldGreet("+55 11 99999-0000"))
		// A different phone has its own slot.
		assert.True(t, g.ShouldGreet("+5511888880000"))

		mr.FastForward(16 * time.Minute)
		assert.True(t, g.ShouldGreet("+5511999990000"))
	})

	t.Run("degrades to false when redis is down", func(t *testing.T) {
		adapter, mr := newTestAdapter(t)
		g := NewGreetingCache(adapter, 15*time.Minute)
		mr.Close()

		assert.False(t, g.ShouldGreet("+5511999990000"))
	})
}

func TestGreetingCache_Greeting(t *testing.T) {
	g := NewGreetingCache(nil, time.Minute)
	g.pick = func(int) int { return 0 }

	at := func(hour int) time.Time {
		return time.Date(2026, 3, 10, hour, 0, 0, 0, time.Local)
	}

	t.Run("time of day selects the pool", func(t *testing.T) {
		assert.Contains(t, g.Greeting(at(9), ""), "Bom dia")
		assert.Contains(t, g.Greeting(at(14), ""), "Boa tarde")
		assert.Contains(t, g.Greeting(at(21), ""), "Boa noite")
		assert.Contains(t, g.Greeting(at(3), ""), "Boa noite")
	})

	t.Run("name is folded into the salutation", func(t *testing.T) {
		assert.Contains(t, g.Greeting(at(9), "Ana"), "Bom dia, Ana!")
	})
}
