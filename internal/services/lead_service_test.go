package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetLead(phone string) (*model.Lead, error) {
	args := m.Called(phone)
	if l := args.Get(0); l != nil {
		return l.(*model.Lead), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) AddInteraction(phone string, direction model.Direction, text string, kind model.InteractionKind) (*model.Lead, error) {
	args := m.Called(phone, direction, text, kind)
	if l := args.Get(0); l != nil {
		return l.(*model.Lead), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) GetConversationContext(phone string, maxMessages int) (string, error) {
	args := m.Called(phone, maxMessages)
	return args.String(0), args.Error(1)
}

type mockResponder struct {
	mock.Mock
}

func (m *mockResponder) GenerateReply(ctx context.Context, lead *model.Lead, conversation, message string) (string, error) {
	args := m.Called(ctx, lead, conversation, message)
	return args.String(0), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) TryAnswer(message string) (string, bool) {
	args := m.Called(message)
	return args.String(0), args.Bool(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) Send(ctx context.Context, phone, text string) bool {
	args := m.Called(ctx, phone, text)
	return args.Bool(0)
}

func inboundLead() *model.Lead {
	return &model.Lead{
		Phone:  "+5511999990000",
		Status: model.StatusNew,
		Score:  12,
	}
}

func TestLeadService_HandleInbound(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty phone and empty message", func(t *testing.T) {
		svc := NewLeadService(&mockStore{}, &mockResponder{}, nil, &mockDispatcher{}, nil, time.Second)

		_, err := svc.HandleInbound(ctx, "  ", "oi")
		require.ErrorIs(t, err, ErrEmptyPhone)

		_, err = svc.HandleInbound(ctx, "+5511999990000", "   ")
		require.ErrorIs(t, err, ErrEmptyMessage)
	})

	t.Run("records inbound, generates and delivers the reply", func(t *testing.T) {
		store := &mockStore{}
		responder := &mockResponder{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, nil, dispatcher, nil, time.Second)

		lead := inboundLead()
		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "quero saber do Toro", model.KindNormal).Return(lead, nil).Once()
		store.On("GetConversationContext", "+5511999990000", ContextWindow).Return("Cliente: quero saber do Toro", nil).Once()
		responder.On("GenerateReply", mock.Anything, lead, "Cliente: quero saber do Toro", "quero saber do Toro").Return("Temos a Toro disponível!", nil).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", "Temos a Toro disponível!").Return(true).Once()
		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, "Temos a Toro disponível!", model.KindNormal).Return(lead, nil).Once()

		reply, err := svc.HandleInbound(ctx, "+5511999990000", "quero saber do Toro")
		require.NoError(t, err)
		assert.Equal(t, "Temos a Toro disponível!", reply)

		store.AssertExpectations(t)
		responder.AssertExpectations(t)
		dispatcher.AssertExpectations(t)
	})

	t.Run("catalog match short-circuits the responder", func(t *testing.T) {
		store := &mockStore{}
		responder := &mockResponder{}
		catalog := &mockCatalog{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, catalog, dispatcher, nil, time.Second)

		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "qual o preço da Strada?", model.KindNormal).Return(inboundLead(), nil).Once()
		catalog.On("TryAnswer", "qual o preço da Strada?").Return("Fiat Strada: R$ 89.990,00", true).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", "Fiat Strada: R$ 89.990,00").Return(true).Once()
		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, "Fiat Strada: R$ 89.990,00", model.KindNormal).Return(inboundLead(), nil).Once()

		reply, err := svc.HandleInbound(ctx, "+5511999990000", "qual o preço da Strada?")
		require.NoError(t, err)
		assert.Equal(t, "Fiat Strada: R$ 89.990,00", reply)

		responder.AssertNotCalled(t, "GenerateReply", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		catalog.AssertExpectations(t)
	})

	t.Run("responder failure falls back to the graceful reply", func(t *testing.T) {
		store := &mockStore{}
		responder := &mockResponder{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, nil, dispatcher, nil, time.Second)

		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "???", model.KindNormal).Return(inboundLead(), nil).Once()
		store.On("GetConversationContext", "+5511999990000", ContextWindow).Return("", nil).Once()
		responder.On("GenerateReply", mock.Anything, mock.Anything, "", "???").Return("", errors.New("model unavailable")).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", FallbackReply).Return(true).Once()
		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, FallbackReply, model.KindNormal).Return(inboundLead(), nil).Once()

		reply, err := svc.HandleInbound(ctx, "+5511999990000", "???")
		require.NoError(t, err)
		assert.Equal(t, FallbackReply, reply)
	})

	t.Run("undelivered reply is not recorded as outbound", func(t *testing.T) {
		store := &mockStore{}
		responder := &mockResponder{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, nil, dispatcher, nil, time.Second)

		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "oi, tem Pulse?", model.KindNormal).Return(inboundLead(), nil).Once()
		store.On("GetConversationContext", "+5511999990000", ContextWindow).Return("", nil).Once()
		responder.On("GenerateReply", mock.Anything, mock.Anything, "", "oi, tem Pulse?").Return("Temos sim!", nil).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", "Temos sim!").Return(false).Once()

		reply, err := svc.HandleInbound(ctx, "+5511999990000", "oi, tem Pulse?")
		require.NoError(t, err)
		assert.Equal(t, "Temos sim!", reply)

		store.AssertNumberOfCalls(t, "AddInteraction", 1)
	})

	t.Run("greeting short-circuits once per window", func(t *testing.T) {
		adapter, _ := newTestAdapter(t)
		greetings := NewGreetingCache(adapter, 15*time.Minute)
		greetings.pick = func(int) int { return 0 }

		store := &mockStore{}
		responder := &mockResponder{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, nil, dispatcher, greetings, time.Second)

		lead := inboundLead()
		lead.DisplayName = "Ana"
		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "oi", model.KindNormal).Return(lead, nil).Twice()
		store.On("GetConversationContext", "+5511999990000", ContextWindow).Return("", nil).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", mock.Anything).Return(true)
		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, mock.Anything, model.KindNormal).Return(lead, nil)

		first, err := svc.HandleInbound(ctx, "+5511999990000", "oi")
		require.NoError(t, err)
		assert.Contains(t, first, "Ana")

		// Second bare greeting inside the window goes to the responder.
		responder.On("GenerateReply", mock.Anything, lead, "", "oi").Return("Como posso ajudar?", nil).Once()
		second, err := svc.HandleInbound(ctx, "+5511999990000", "oi")
		require.NoError(t, err)
		assert.Equal(t, "Como posso ajudar?", second)

		responder.AssertExpectations(t)
	})

	t.Run("store failure on inbound still answers the customer", func(t *testing.T) {
		store := &mockStore{}
		responder := &mockResponder{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, responder, nil, dispatcher, nil, time.Second)

		store.On("AddInteraction", "+5511999990000", model.DirectionInbound, "tem Argo?", model.KindNormal).Return(nil, errors.New("disk full")).Once()
		responder.On("GenerateReply", mock.Anything, (*model.Lead)(nil), "", "tem Argo?").Return("Temos o Argo sim!", nil).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", "Temos o Argo sim!").Return(true).Once()
		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, "Temos o Argo sim!", model.KindNormal).Return(inboundLead(), nil).Once()

		reply, err := svc.HandleInbound(ctx, "+5511999990000", "tem Argo?")
		require.NoError(t, err)
		assert.Equal(t, "Temos o Argo sim!", reply)
	})
}

func TestLeadService_ManualFollowUp(t *testing.T) {
	ctx := context.Background()

	t.Run("records and delivers", func(t *testing.T) {
		store := &mockStore{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, StaticResponder{}, nil, dispatcher, nil, time.Second)

		store.On("AddInteraction", "+5511999990000", model.DirectionOutbound, "Proposta enviada por e-mail!", model.KindManual).Return(inboundLead(), nil).Once()
		dispatcher.On("Send", mock.Anything, "+5511999990000", "Proposta enviada por e-mail!").Return(true).Once()

		assert.True(t, svc.ManualFollowUp(ctx, "+5511999990000", "Proposta enviada por e-mail!"))
		store.AssertExpectations(t)
	})

	t.Run("delivery failure still counts as recorded", func(t *testing.T) {
		store := &mockStore{}
		dispatcher := &mockDispatcher{}
		svc := NewLeadService(store, StaticResponder{}, nil, dispatcher, nil, time.Second)

		store.On("AddInteraction", mock.Anything, model.DirectionOutbound, mock.Anything, model.KindManual).Return(inboundLead(), nil).Once()
		dispatcher.On("Send", mock.Anything, mock.Anything, mock.Anything).Return(false).Once()

		assert.True(t, svc.ManualFollowUp(ctx, "+5511999990000", "Oi!"))
	})

	t.Run("rejects blank input", func(t *testing.T) {
		svc := NewLeadService(&mockStore{}, StaticResponder{}, nil, &mockDispatcher{}, nil, time.Second)
		assert.False(t, svc.ManualFollowUp(ctx, "", "Oi!"))
		assert.False(t, svc.ManualFollowUp(ctx, "+5511999990000", "   "))
	})

	t.Run("store failure fails the operation", func(t *testing.T) {
		store := &mockStore{}
		svc := NewLeadService(store, StaticResponder{}, nil, &mockDispatcher{}, nil, time.Second)

		store.On("AddInteraction", mock.Anything, model.DirectionOutbound, mock.Anything, model.KindManual).Return(nil, errors.New("disk full")).Once()
		assert.False(t, svc.ManualFollowUp(ctx, "+5511999990000", "Oi!"))
	})
}

func TestStaticResponder(t *testing.T) {
	r := StaticResponder{}

	reply, err := r.GenerateReply(context.Background(), &model.Lead{DisplayName: "Ana"}, "", "oi")
	require.NoError(t, err)
	assert.Contains(t, reply, "Ana")

	reply, err = r.GenerateReply(context.Background(), nil, "", "oi")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
