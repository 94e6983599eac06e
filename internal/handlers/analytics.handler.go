package handlers

import (
	"context"
	"strconv"

	"github.com/fasthttp/router"

	"github.com/autovendas/lead-gateway/internal/analytics"
	xhttp "github.com/autovendas/lead-gateway/pkg/http"
	"github.com/autovendas/lead-gateway/pkg/logger"
)

// ReportBuilder computes the on-demand analytics report.
type ReportBuilder interface {
	BuildReport() (*analytics.Report, error)
}

// SnapshotArchive persists and lists archived reports.
type SnapshotArchive interface {
	Save(ctx context.Context, report *analytics.Report) (int64, error)
	List(ctx context.Context, limit int) ([]analytics.SnapshotEntity, error)
}

// EngineStats exposes the automation engine's runtime counters.
type EngineStats interface {
	Stats() map[string]any
}

type AnalyticsHandler struct {
	reports ReportBuilder
	archive SnapshotArchive
	engine  EngineStats
}

func RegisterAnalyticsRoutes(e *router.Group, h *AnalyticsHandler) {
	e.GET("/analytics/report", h.GetReport)
	e.GET("/analytics/snapshots", h.ListSnapshots)
	e.GET("/automation/stats", h.GetAutomationStats)
}

func NewAnalyticsHandler(reports ReportBuilder, archive SnapshotArchive, engine EngineStats) *AnalyticsHandler {
	return &AnalyticsHandler{reports: reports, archive: archive, engine: engine}
}

// GetReport computes the report; ?save=1 also archives a snapshot.
func (h *AnalyticsHandler) GetReport(ctx *xhttp.RequestCtx) {
	report, err := h.reports.BuildReport()
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	if query(ctx, "save") == "1" && h.archive != nil {
		if _, err := h.archive.Save(ctx, report); err != nil {
			logger.Warn("failed to archive report snapshot", "error", err)
		}
	}
	writeJSON(ctx, 200, report)
}

func (h *AnalyticsHandler) ListSnapshots(ctx *xhttp.RequestCtx) {
	if h.archive == nil {
		writeError(ctx, 503, "report archive is not configured")
		return
	}
	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	snapshots, err := h.archive.List(ctx, limit)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	reports := make([]map[string]any, 0, len(snapshots))
	for _, s := range snapshots {
		reports = append(reports, map[string]any{
			"id":              s.ID,
			"generated_at":    s.GeneratedAt,
			"total_leads":     s.TotalLeads,
			"hot_leads":       s.HotLeads,
			"conversion_rate": s.ConversionRate,
			"avg_score":       s.AvgScore,
		})
	}
	writeJSON(ctx, 200, map[string]any{"items": reports, "total": len(reports)})
}

// GetAutomationStats merges the engine's live counters with the
// per-rule execution totals derived from lead state.
func (h *AnalyticsHandler) GetAutomationStats(ctx *xhttp.RequestCtx) {
	report, err := h.reports.BuildReport()
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	out := map[string]any{
		"total_executions":       report.Automation.TotalExecutions,
		"by_rule":                report.Automation.ByRule,
		"leads_with_automations": report.Automation.LeadsWithAutomations,
	}
	if h.engine != nil {
		out["engine"] = h.engine.Stats()
	}
	writeJSON(ctx, 200, out)
}
