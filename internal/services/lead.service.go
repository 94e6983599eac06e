package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/autovendas/lead-gateway/pkg/prom"
)

var (
	ErrEmptyMessage = errors.New("message body cannot be empty")
	ErrEmptyPhone   = errors.New("phone number is required")
)

// ContextWindow is how many recent interactions the response generator
// sees when building a reply.
const ContextWindow = 8

// LeadStore is the slice of the store the webhook path uses.
type LeadStore interface {
	GetLead(phone string) (*model.Lead, error)
	AddInteraction(phone string, direction model.Direction, text string, kind model.InteractionKind) (*model.Lead, error)
	GetConversationContext(phone string, maxMessages int) (string, error)
}

// Responder produces the reply text for an inbound message. The actual
// generation (language model, canned templates) is outside the core.
type Responder interface {
	GenerateReply(ctx context.Context, lead *model.Lead, conversation, message string) (string, error)
}

// CatalogMatcher may short-circuit response generation when the message
// clearly targets the offer catalog.
type CatalogMatcher interface {
	TryAnswer(message string) (string, bool)
}

// Dispatcher attempts outbound delivery; false is a tolerated outcome.
type Dispatcher interface {
	Send(ctx context.Context, phone, text string) bool
}

type LeadService struct {
	store           LeadStore
	responder       Responder
	catalog         CatalogMatcher
	dispatcher      Dispatcher
	greetings       *GreetingCache
	dispatchTimeout time.Duration
}

func NewLeadService(store LeadStore, responder Responder, catalog CatalogMatcher, dispatcher Dispatcher, greetings *GreetingCache, dispatchTimeout time.Duration) *LeadService {
	if dispatchTimeout <= 0 {
		dispatchTimeout = 5 * time.Second
	}
	return &LeadService{
		store:           store,
		responder:       responder,
		catalog:         catalog,
		dispatcher:      dispatcher,
		greetings:       greetings,
		dispatchTimeout: dispatchTimeout,
	}
}

// HandleInbound runs the full webhook path: record the inbound message,
// choose a reply (greeting short-circuit, catalog match, then the
// response generator), attempt delivery, and record the outbound message
// when delivery succeeded.
//
// A store failure while recording degrades to "reply not saved to
// history"; it never prevents the customer from getting an answer.
func (s *LeadService) HandleInbound(ctx context.Context, phone, text string) (string, error) {
	phone = strings.TrimSpace(phone)
	text = strings.TrimSpace(text)
	if phone == "" {
		return "", ErrEmptyPhone
	}
	if text == "" {
		return "", ErrEmptyMessage
	}
	prom.IncWebhookMessage()

	lead, err := s.store.AddInteraction(phone, model.DirectionInbound, text, model.KindNormal)
	if err != nil {
		logger.Warn("failed to record inbound interaction", "phone", phone, "error", err)
	}

	reply := s.buildReply(ctx, lead, phone, text)
	if reply == "" {
		return "", nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	if s.dispatcher.Send(sendCtx, phone, reply) {
		if _, err := s.store.AddInteraction(phone, model.DirectionOutbound, reply, model.KindNormal); err != nil {
			logger.Warn("failed to record outbound interaction", "phone", phone, "error", err)
		}
	} else {
		prom.IncDispatchFailure()
		logger.Warn("reply not delivered", "phone", phone)
	}
	return reply, nil
}

func (s *LeadService) buildReply(ctx context.Context, lead *model.Lead, phone, text string) string {
	// Greeting-only messages get a time-of-day greeting, rate limited per
	// phone so repeated "oi" within the window falls through to the
	// generator instead.
	if s.greetings != nil && IsGreeting(text) && s.greetings.ShouldGreet(phone) {
		name := ""
		if lead != nil {
			name = lead.DisplayName
		}
		return s.greetings.Greeting(time.Now(), name)
	}

	if s.catalog != nil {
		if answer, ok := s.catalog.TryAnswer(text); ok {
			return answer
		}
	}

	conversation := ""
	if lead != nil {
		var err error
		conversation, err = s.store.GetConversationContext(phone, ContextWindow)
		if err != nil {
			logger.Warn("failed to build conversation context", "phone", phone, "error", err)
		}
	}
	reply, err := s.responder.GenerateReply(ctx, lead, conversation, text)
	if err != nil {
		logger.Error("response generation failed", "phone", phone, "error", err)
		return FallbackReply
	}
	return reply
}

// FallbackReply is sent when the generator fails: the customer always
// gets a graceful answer, never an error page.
const FallbackReply = "Desculpe, tive um problema aqui. Pode repetir, por favor?"

// ManualFollowUp records an operator-written outbound message and
// attempts delivery. Returns true when the message was recorded; delivery
// failure alone does not fail the operation.
func (s *LeadService) ManualFollowUp(ctx context.Context, phone, text string) bool {
	phone = strings.TrimSpace(phone)
	text = strings.TrimSpace(text)
	if phone == "" || text == "" {
		return false
	}
	if _, err := s.store.AddInteraction(phone, model.DirectionOutbound, text, model.KindManual); err != nil {
		logger.Error("failed to record manual follow-up", "phone", phone, "error", err)
		return false
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()
	if !s.dispatcher.Send(sendCtx, phone, text) {
		logger.Warn("manual follow-up not delivered", "phone", phone)
	}
	return true
}

// StaticResponder is the built-in Responder used when no language-model
// integration is configured. It keeps the conversation moving with a
// handoff message; reply quality is explicitly out of scope here.
type StaticResponder struct{}

func (StaticResponder) GenerateReply(_ context.Context, lead *model.Lead, _ string, _ string) (string, error) {
	if lead != nil && lead.DisplayName != "" {
		return "Obrigado pela mensagem, " + lead.DisplayName + "! Um de nossos vendedores vai te responder em instantes.", nil
	}
	return "Obrigado pela mensagem! Um de nossos vendedores vai te responder em instantes.", nil
}
