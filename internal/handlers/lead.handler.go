package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/internal/store"
	xhttp "github.com/autovendas/lead-gateway/pkg/http"
)

// DefaultHotScore is the score floor used when the hot-leads endpoint is
// called without an explicit min_score.
const DefaultHotScore = 50

// DefaultInactiveHours is the window used when the inactive-leads
// endpoint is called without an explicit hours value.
const DefaultInactiveHours = 24

// LeadStore is the slice of the store the HTTP surface uses.
type LeadStore interface {
	GetLead(phone string) (*model.Lead, error)
	GetAllLeads() ([]*model.Lead, error)
	GetLeadsByStatus(status model.LeadStatus) ([]*model.Lead, error)
	GetHotLeads(minScore int) ([]*model.Lead, error)
	GetInactiveLeads(hours int) ([]*model.Lead, error)
	CreateOrUpdateLead(phone string, upd model.LeadUpdate) (*model.Lead, error)
	AddNote(phone, text, author string) (*model.Lead, error)
	UpdateStatus(phone string, newStatus model.LeadStatus) (*model.Lead, error)
}

// FollowUpService sends operator-written outbound messages.
type FollowUpService interface {
	ManualFollowUp(ctx context.Context, phone, text string) bool
}

type LeadHandler struct {
	store LeadStore
	svc   FollowUpService
}

func RegisterLeadRoutes(e *router.Group, h *LeadHandler) {
	e.GET("/leads", h.ListLeads)
	e.POST("/leads", h.UpsertLead)
	// static segments must be registered before the {phone} wildcard
	e.GET("/leads/hot", h.ListHotLeads)
	e.GET("/leads/inactive", h.ListInactiveLeads)
	e.GET("/leads/{phone}", h.GetLead)
	e.POST("/leads/{phone}/notes", h.AddNote)
	e.PUT("/leads/{phone}/status", h.UpdateStatus)
	e.POST("/leads/{phone}/follow-up", h.SendFollowUp)
}

func NewLeadHandler(st LeadStore, svc FollowUpService) *LeadHandler {
	return &LeadHandler{store: st, svc: svc}
}

type upsertLeadRequest struct {
	Phone string `json:"phone"`
	model.LeadUpdate
}

type addNoteRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type followUpRequest struct {
	Message string `json:"message"`
}

type leadListResponse struct {
	Items []*model.Lead `json:"items"`
	Total int           `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *LeadHandler) ListLeads(ctx *xhttp.RequestCtx) {
	var (
		leads []*model.Lead
		err   error
	)
	if v := query(ctx, "status"); v != "" {
		status := model.LeadStatus(v)
		if !status.Valid() {
			writeError(ctx, 400, "unknown status: "+v)
			return
		}
		leads, err = h.store.GetLeadsByStatus(status)
	} else {
		leads, err = h.store.GetAllLeads()
	}
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, leadListResponse{Items: leads, Total: len(leads)})
}

func (h *LeadHandler) ListHotLeads(ctx *xhttp.RequestCtx) {
	minScore := DefaultHotScore
	if v := query(ctx, "min_score"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			minScore = n
		}
	}
	leads, err := h.store.GetHotLeads(minScore)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, leadListResponse{Items: leads, Total: len(leads)})
}

func (h *LeadHandler) ListInactiveLeads(ctx *xhttp.RequestCtx) {
	hours := DefaultInactiveHours
	if v := query(ctx, "hours"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			hours = n
		}
	}
	leads, err := h.store.GetInactiveLeads(hours)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, leadListResponse{Items: leads, Total: len(leads)})
}

func (h *LeadHandler) GetLead(ctx *xhttp.RequestCtx) {
	phone := param(ctx, "phone")
	lead, err := h.store.GetLead(phone)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorrupted) {
			writeError(ctx, 404, "lead not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, lead)
}

func (h *LeadHandler) UpsertLead(ctx *xhttp.RequestCtx) {
	var req upsertLeadRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Phone == "" {
		writeError(ctx, 400, "phone is required")
		return
	}
	if err := req.LeadUpdate.Validate(); err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	lead, err := h.store.CreateOrUpdateLead(req.Phone, req.LeadUpdate)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, lead)
}

func (h *LeadHandler) AddNote(ctx *xhttp.RequestCtx) {
	var req addNoteRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Text == "" {
		writeError(ctx, 400, "text is required")
		return
	}
	lead, err := h.store.AddNote(param(ctx, "phone"), req.Text, req.Author)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 201, lead)
}

func (h *LeadHandler) UpdateStatus(ctx *xhttp.RequestCtx) {
	var req updateStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	status := model.LeadStatus(req.Status)
	if !status.Valid() {
		writeError(ctx, 400, "unknown status: "+req.Status)
		return
	}
	lead, err := h.store.UpdateStatus(param(ctx, "phone"), status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(ctx, 404, "lead not found")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, lead)
}

func (h *LeadHandler) SendFollowUp(ctx *xhttp.RequestCtx) {
	var req followUpRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if req.Message == "" {
		writeError(ctx, 400, "message is required")
		return
	}
	if !h.svc.ManualFollowUp(ctx, param(ctx, "phone"), req.Message) {
		writeError(ctx, 500, "failed to record follow-up")
		return
	}
	writeJSON(ctx, 200, map[string]string{"status": "sent"})
}

/* --------------------------------- Helpers ----------------------------------- */

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func param(ctx *xhttp.RequestCtx, name string) string {
	if v, ok := ctx.UserValue(name).(string); ok {
		return v
	}
	return ""
}
