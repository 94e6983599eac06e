package handlers

import (
	"context"
	"strings"

	"github.com/fasthttp/router"

	xhttp "github.com/autovendas/lead-gateway/pkg/http"
	"github.com/autovendas/lead-gateway/pkg/logger"
)

// InboundService runs the webhook pipeline for one inbound message.
type InboundService interface {
	HandleInbound(ctx context.Context, phone, text string) (string, error)
}

type WebhookHandler struct {
	svc InboundService
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/whatsapp", h.ReceiveWhatsApp)
}

func NewWebhookHandler(svc InboundService) *WebhookHandler {
	return &WebhookHandler{svc: svc}
}

// ReceiveWhatsApp accepts the provider's form-encoded callback. Replies
// are delivered out of band through the provider API, so the webhook
// response body stays empty: the provider only cares about the 200.
func (h *WebhookHandler) ReceiveWhatsApp(ctx *xhttp.RequestCtx) {
	from := string(ctx.PostArgs().Peek("From"))
	body := string(ctx.PostArgs().Peek("Body"))
	from = strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:")

	if _, err := h.svc.HandleInbound(ctx, from, body); err != nil {
		// A malformed callback is logged and acknowledged anyway;
		// returning an error would only make the provider retry it.
		logger.Warn("webhook message rejected", "from", from, "error", err)
	}
	ctx.Response.SetStatusCode(xhttp.StatusOK)
}
