package handlers

import (
	"context"
	"errors"
	"net/url"
	"testing"

	xhttp "github.com/autovendas/lead-gateway/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockInboundService struct {
	mock.Mock
}

func (m *MockInboundService) HandleInbound(ctx context.Context, phone, text string) (string, error) {
	args := m.Called(ctx, phone, text)
	return args.String(0), args.Error(1)
}

func setupFormContext(values url.Values) *xhttp.RequestCtx {
	ctx := setupTestContext("POST", "/webhook/whatsapp", []byte(values.Encode()))
	ctx.Request.Header.SetContentType("application/x-www-form-urlencoded")
	return ctx
}

func TestWebhookHandler_ReceiveWhatsApp(t *testing.T) {
	t.Run("strips the provider prefix and acknowledges", func(t *testing.T) {
		svc := new(MockInboundService)
		handler := NewWebhookHandler(svc)
		svc.On("HandleInbound", mock.Anything, "+5511999990000", "quero saber da Toro").Return("Temos sim!", nil)

		ctx := setupFormContext(url.Values{
			"From": {"whatsapp:+5511999990000"},
			"Body": {"quero saber da Toro"},
		})
		handler.ReceiveWhatsApp(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Empty(t, ctx.Response.Body(), "reply goes out of band, not in the webhook response")
		svc.AssertExpectations(t)
	})

	t.Run("service errors are acknowledged anyway", func(t *testing.T) {
		svc := new(MockInboundService)
		handler := NewWebhookHandler(svc)
		svc.On("HandleInbound", mock.Anything, "", "").Return("", errors.New("phone number is required"))

		ctx := setupFormContext(url.Values{})
		handler.ReceiveWhatsApp(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())
	})
}
