package e2e

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/autovendas/lead-gateway/internal/automation"
	"github.com/autovendas/lead-gateway/internal/catalog"
	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/internal/scoring"
	"github.com/autovendas/lead-gateway/internal/services"
	"github.com/autovendas/lead-gateway/internal/store"
	"github.com/autovendas/lead-gateway/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingDispatcher struct {
	mu       sync.Mutex
	messages []string
}

func (d *capturingDispatcher) Send(_ context.Context, phone, text string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, text)
	return true
}

func (d *capturingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func (d *capturingDispatcher) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.messages) == 0 {
		return ""
	}
	return d.messages[len(d.messages)-1]
}

const offersFixture = `[
  {
    "modelo": "Fiat Toro",
    "versao": "Endurance 1.3 Turbo",
    "condicoes": ["Entrada de 50% + 24x sem juros"],
    "preco_por": "R$ 144.990,00",
    "link_modelo": "https://exemplo.com/toro"
  }
]`

// Walks one lead from first contact to a hot-lead automation: greeting,
// catalog answer, scoring, rule execution and cooldown suppression, all
// against the real store, cache and engine.
func TestLeadFlow(t *testing.T) {
	const phone = "+5511999990000"
	ctx := context.Background()

	mr := miniredis.RunT(t)
	adapter, err := redis.NewAdapter("e2e-lead-flow", "lead_gateway:", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	leadStore, err := store.New(t.TempDir(), scoring.DefaultPolicy(), store.WithDefaultRep("Felipe Fortes"))
	require.NoError(t, err)

	offersPath := filepath.Join(t.TempDir(), "ofertas.json")
	require.NoError(t, os.WriteFile(offersPath, []byte(offersFixture), 0o644))
	offers := catalog.New(offersPath, 3)

	dispatcher := &capturingDispatcher{}
	greetings := services.NewGreetingCache(adapter, 15*time.Minute)
	svc := services.NewLeadService(leadStore, services.StaticResponder{}, offers, dispatcher, greetings, time.Second)

	// First contact: a bare salutation gets a greeting and creates the lead.
	reply, err := svc.HandleInbound(ctx, "whatsapp:"+phone, "oi")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	lead, err := leadStore.GetLead(phone)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNew, lead.Status)
	assert.Equal(t, "Felipe Fortes", lead.AssignedRep)
	assert.GreaterOrEqual(t, lead.Score, 2)
	afterGreeting := lead.Score

	// A catalog question is answered from the offers file.
	reply, err = svc.HandleInbound(ctx, phone, "quero financiar o Toro, quando posso ir?")
	require.NoError(t, err)
	assert.Contains(t, reply, "Fiat Toro Endurance 1.3 Turbo")
	assert.Contains(t, reply, "Entrada de 50% + 24x sem juros")

	lead, err = leadStore.GetLead(phone)
	require.NoError(t, err)
	// financiar (15) + quando (10) + inbound bonus (2); the recorded
	// catalog reply scores zero.
	assert.Equal(t, afterGreeting+27, lead.Score)

	// Strong purchase intent pushes the lead over the hot threshold.
	_, err = svc.HandleInbound(ctx, phone, "quero comprar, pode agendar?")
	require.NoError(t, err)

	lead, err = leadStore.GetLead(phone)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, lead.Score, 50)

	sentBefore := dispatcher.count()

	// The qualification rule picks the lead up on the next cycle.
	engine, err := automation.NewEngine(leadStore, dispatcher, automation.DefaultRules(), automation.Config{
		Interval:        time.Hour,
		RetryDelay:      time.Hour,
		StopTimeout:     time.Second,
		DispatchTimeout: time.Second,
	})
	require.NoError(t, err)

	require.NoError(t, engine.RunCycle(ctx))
	assert.Equal(t, sentBefore+1, dispatcher.count())

	lead, err = leadStore.GetLead(phone)
	require.NoError(t, err)
	_, fired := lead.LastAutomation("qualificacao_lead_quente")
	assert.True(t, fired)

	automated := lead.History[len(lead.History)-1]
	assert.Equal(t, model.DirectionOutbound, automated.Direction)
	assert.Equal(t, model.KindAutomated, automated.Kind)
	assert.Equal(t, automated.Text, dispatcher.last())

	// The cooldown suppresses a repeat on the very next cycle.
	require.NoError(t, engine.RunCycle(ctx))
	assert.Equal(t, sentBefore+1, dispatcher.count())

	// The stored score always equals a policy replay of the history.
	assert.Equal(t, scoring.DefaultPolicy().Replay(lead.History), lead.Score)

	// The whole exchange reads back as a transcript.
	transcript, err := leadStore.GetConversationContext(phone, 10)
	require.NoError(t, err)
	assert.Contains(t, transcript, "Cliente: oi")
	assert.Contains(t, transcript, "Vendedor:")
}
