package gateway

import (
	"context"

	"github.com/autovendas/lead-gateway/pkg/logger"
)

// Simulator stands in for the provider when no PROVIDER_URL is
// configured. Messages are logged as delivered so the rest of the
// pipeline behaves exactly as in production.
type Simulator struct{}

func (Simulator) Send(_ context.Context, phone, text string) bool {
	logger.Info("[simulation] whatsapp message", "phone", phone, "text", text)
	return true
}
