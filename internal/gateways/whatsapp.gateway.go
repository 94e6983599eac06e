// Package gateway holds the outbound message boundary: a thin HTTP
// client for the WhatsApp business provider. The core never sees the
// wire format, only a boolean delivery outcome.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "DELIVERED"
	StatusQueued    DeliveryStatus = "QUEUED"
	StatusFailed    DeliveryStatus = "FAILED"
)

type SendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type SendResponse struct {
	MessageID   string         `json:"message_id"`
	Status      DeliveryStatus `json:"status"`
	ErrorCode   string         `json:"error_code,omitempty"`
	ErrorMsg    string         `json:"error_message,omitempty"`
	ProcessedAt time.Time      `json:"processed_at"`
}

type Config struct {
	// BaseURL of the provider API, e.g. http://localhost:9200.
	BaseURL string
	// From is the dealership's WhatsApp sender id.
	From string
	// Timeout bounds one request; the boundary must never stall a
	// scheduler cycle or a webhook response.
	Timeout time.Duration
	// MaxRetries for transient transport failures within one Send.
	MaxRetries int
	RetryDelay time.Duration
}

type Client struct {
	cfg  *Config
	http *fasthttp.Client
}

func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("provider base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	client := &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
	logger.Info("whatsapp provider client initialized", "url", cfg.BaseURL, "timeout", cfg.Timeout)
	return client, nil
}

// SendMessage posts one message to the provider, retrying transient
// failures up to MaxRetries.
func (c *Client) SendMessage(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	if req.From == "" {
		req.From = c.cfg.From
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		raw, err := c.doRequest(ctx, "POST", "/v1/messages", body)
		if err != nil {
			logger.Warn("provider request failed", "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		resp := &SendResponse{}
		if err := json.Unmarshal(raw, resp); err != nil {
			return nil, fmt.Errorf("unmarshal send response: %w", err)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("send failed after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

// Send is the boolean boundary the core consumes: true only when the
// provider accepted the message. Failures are logged, never raised.
func (c *Client) Send(ctx context.Context, phone, text string) bool {
	resp, err := c.SendMessage(ctx, &SendRequest{To: phone, Body: text})
	if err != nil {
		logger.Warn("whatsapp delivery failed", "phone", phone, "error", err)
		return false
	}
	if resp.Status == StatusFailed {
		logger.Warn("whatsapp delivery rejected", "phone", phone, "code", resp.ErrorCode, "message", resp.ErrorMsg)
		return false
	}
	return true
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.cfg.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.cfg.Timeout)
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK && status != fasthttp.StatusAccepted && status != fasthttp.StatusCreated {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", status, resp.Body())
	}

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return out, nil
}
