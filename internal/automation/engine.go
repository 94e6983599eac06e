// Package automation periodically scans all leads against a declarative
// rule catalog and sends templated re-engagement messages, subject to a
// per-(lead, rule) cooldown.
package automation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/autovendas/lead-gateway/pkg/prom"
)

// Store is the slice of the lead store the engine needs.
type Store interface {
	GetAllLeads() ([]*model.Lead, error)
	AddInteraction(phone string, direction model.Direction, text string, kind model.InteractionKind) (*model.Lead, error)
	RecordAutomation(phone, rule string, at time.Time) (*model.Lead, error)
}

// Dispatcher is the outbound message boundary. Send reports success as a
// boolean; the engine tolerates false without retrying (the action is
// "executed" once attempted, which favors not-spamming over guaranteed
// delivery).
type Dispatcher interface {
	Send(ctx context.Context, phone, text string) bool
}

type Config struct {
	// Interval between full rule-evaluation cycles.
	Interval time.Duration
	// RetryDelay replaces Interval after a cycle-level failure.
	RetryDelay time.Duration
	// StopTimeout bounds how long Stop waits for an in-flight cycle.
	StopTimeout time.Duration
	// DispatchTimeout bounds a single delivery attempt.
	DispatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:        5 * time.Minute,
		RetryDelay:      time.Minute,
		StopTimeout:     30 * time.Second,
		DispatchTimeout: 5 * time.Second,
	}
}

// Engine is the background scheduler. It has two states, stopped and
// running; Start is idempotent and Stop waits (bounded) for the current
// cycle to finish so no lead write is cut off mid-flight.
type Engine struct {
	store      Store
	dispatcher Dispatcher
	rules      []model.Rule
	cfg        Config
	metrics    *CycleMetrics

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	now  func() time.Time
	pick func(n int) int
}

func NewEngine(store Store, dispatcher Dispatcher, rules []model.Rule, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultConfig().RetryDelay
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultConfig().StopTimeout
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultConfig().DispatchTimeout
	}
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{
		store:      store,
		dispatcher: dispatcher,
		rules:      rules,
		cfg:        cfg,
		metrics:    NewCycleMetrics(),
		now:        func() time.Time { return time.Now().UTC() },
		pick:       rand.Intn,
	}, nil
}

// Start launches the background loop. Calling Start on a running engine
// logs a warning and does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		logger.Warn("automation engine already running")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.running = true
	go e.loop(ctx)
	logger.Info("automation engine started", "interval", e.cfg.Interval, "rules", len(e.rules))
}

// Stop cancels the loop and waits up to StopTimeout for the in-flight
// cycle to drain. Safe to call on a stopped engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.done
	e.mu.Unlock()

	cancel()
	select {
	case <-done:
		logger.Info("automation engine stopped")
	case <-time.After(e.cfg.StopTimeout):
		logger.Warn("timeout waiting for automation cycle to finish", "timeout", e.cfg.StopTimeout)
	}
}

// Running reports the engine state.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.done)
	for {
		delay := e.cfg.Interval
		if err := e.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("automation cycle failed", "error", err)
			delay = e.cfg.RetryDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// RunCycle evaluates every rule against every lead once. A failure inside
// one rule is logged and isolated; only a failure to enumerate leads (or
// cancellation) aborts the cycle.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	leads, err := e.store.GetAllLeads()
	if err != nil {
		return fmt.Errorf("enumerate leads: %w", err)
	}

	executed := 0
	for _, rule := range e.rules {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := e.evaluateRule(ctx, rule, leads)
		executed += n
		if err != nil {
			e.metrics.RecordRuleFailure()
			logger.Error("rule evaluation failed", "rule", rule.Name, "error", err)
		}
	}

	e.metrics.RecordCycle(time.Since(start))
	prom.ObserveAutomationCycleDuration(time.Since(start).Seconds())
	if executed > 0 {
		logger.Info("automation cycle finished", "leads", len(leads), "actions", executed, "duration", time.Since(start).String())
	}
	return nil
}

// evaluateRule applies one rule to the lead set, returning how many
// actions were executed. A panic inside the rule body is converted to an
// error so it cannot take down the loop.
func (e *Engine) evaluateRule(ctx context.Context, rule model.Rule, leads []*model.Lead) (executed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule %s panicked: %v", rule.Name, r)
		}
	}()

	now := e.now()
	for _, lead := range leads {
		if ctx.Err() != nil {
			return executed, ctx.Err()
		}
		if !Matches(rule.Condition, lead, now) {
			continue
		}
		if onCooldown(rule, lead, now) {
			continue
		}
		e.execute(ctx, rule, lead)
		executed++
	}
	return executed, nil
}

// execute records the templated message as an automated outbound
// interaction, stamps the cooldown, then attempts delivery. Delivery
// failure does not roll back either write.
func (e *Engine) execute(ctx context.Context, rule model.Rule, lead *model.Lead) {
	text := e.pickTemplate(rule)
	if text == "" {
		logger.Warn("rule has no templates", "rule", rule.Name)
		return
	}
	text = Personalize(text, lead.DisplayName)

	if _, err := e.store.AddInteraction(lead.Phone, model.DirectionOutbound, text, model.KindAutomated); err != nil {
		// Without the recorded interaction the follow-up cap cannot see
		// this attempt, so skip the cooldown stamp and let the next cycle
		// retry the whole action.
		logger.Error("failed to record automated interaction", "rule", rule.Name, "phone", lead.Phone, "error", err)
		return
	}
	if _, err := e.store.RecordAutomation(lead.Phone, rule.Name, e.now()); err != nil {
		logger.Error("failed to record automation cooldown", "rule", rule.Name, "phone", lead.Phone, "error", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.cfg.DispatchTimeout)
	defer cancel()
	delivered := e.dispatcher.Send(sendCtx, lead.Phone, text)
	e.metrics.RecordAction()
	if !delivered {
		e.metrics.RecordDispatchFailure()
		logger.Warn("automated message not delivered", "rule", rule.Name, "phone", lead.Phone)
	}
	prom.IncAutomationAction(rule.Name, delivered)
	logger.Info("automated message sent", "rule", rule.Name, "phone", lead.Phone, "delivered", delivered)
}

func (e *Engine) pickTemplate(rule model.Rule) string {
	if len(rule.Templates) == 0 {
		return ""
	}
	return rule.Templates[e.pick(len(rule.Templates))]
}

// Stats returns the engine's in-process counters.
func (e *Engine) Stats() map[string]interface{} {
	return e.metrics.Stats()
}

// Personalize injects the lead's display name into a template. Templates
// opening with "Oi!" or "Olá!" get the name folded into the greeting;
// anything else is prefixed with a greeting and downcased.
func Personalize(template, name string) string {
	if name == "" {
		return template
	}
	if strings.HasPrefix(template, "Oi!") {
		return strings.Replace(template, "Oi!", "Oi, "+name+"!", 1)
	}
	if strings.HasPrefix(template, "Olá!") {
		return strings.Replace(template, "Olá!", "Olá, "+name+"!", 1)
	}
	return "Oi, " + name + "! " + strings.ToLower(template)
}
