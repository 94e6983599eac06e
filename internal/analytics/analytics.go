// Package analytics derives funnel and engagement reports from the lead
// store. Strictly read-only over core state.
package analytics

import (
	"math"
	"strings"
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
)

// Store is the read-only slice of the lead store the reports consume.
type Store interface {
	GetAllLeads() ([]*model.Lead, error)
}

// HotLeadThreshold mirrors the qualification rule's score floor.
const HotLeadThreshold = 50

type Overview struct {
	TotalLeads         int            `json:"total_leads"`
	ConversionRate     float64        `json:"conversion_rate"`
	AvgScore           float64        `json:"avg_score"`
	HotLeads           int            `json:"hot_leads"`
	ActiveLeads24h     int            `json:"active_leads_24h"`
	StatusDistribution map[string]int `json:"status_distribution"`
}

type Funnel struct {
	StageCounts     map[string]int     `json:"stage_counts"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

type Engagement struct {
	TotalMessages    int     `json:"total_messages"`
	InboundMessages  int     `json:"inbound_messages"`
	OutboundMessages int     `json:"outbound_messages"`
	AvgPerLead       float64 `json:"avg_messages_per_lead"`
	ResponseRate     float64 `json:"response_rate"`
}

// AutomationStats is derived from each lead's cooldown keys: a key's
// presence means the rule fired for that lead at least once.
type AutomationStats struct {
	TotalExecutions      int            `json:"total_executions"`
	ByRule               map[string]int `json:"by_rule"`
	LeadsWithAutomations int            `json:"leads_with_automations"`
}

type Report struct {
	GeneratedAt     time.Time       `json:"generated_at"`
	Overview        Overview        `json:"overview"`
	Funnel          Funnel          `json:"funnel"`
	Engagement      Engagement      `json:"engagement"`
	VehicleInterest map[string]int  `json:"vehicle_interest"`
	Automation      AutomationStats `json:"automation"`
}

// Engine builds reports. Vehicle keywords are configuration so new
// models can be tracked without a code change.
type Engine struct {
	store           Store
	vehicleKeywords map[string][]string
	now             func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{
		store: store,
		vehicleKeywords: map[string][]string{
			"pulse":    {"pulse"},
			"toro":     {"toro"},
			"strada":   {"strada"},
			"argo":     {"argo"},
			"cronos":   {"cronos"},
			"fastback": {"fastback"},
			"mobi":     {"mobi"},
			"fiorino":  {"fiorino"},
			"ducato":   {"ducato"},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (e *Engine) BuildReport() (*Report, error) {
	leads, err := e.store.GetAllLeads()
	if err != nil {
		return nil, err
	}
	return &Report{
		GeneratedAt:     e.now(),
		Overview:        e.overview(leads),
		Funnel:          e.funnel(leads),
		Engagement:      e.engagement(leads),
		VehicleInterest: e.vehicleInterest(leads),
		Automation:      BuildAutomationStats(leads),
	}, nil
}

func (e *Engine) overview(leads []*model.Lead) Overview {
	ov := Overview{StatusDistribution: map[string]int{}}
	ov.TotalLeads = len(leads)
	if len(leads) == 0 {
		return ov
	}

	scoreSum := 0
	cutoff := e.now().Add(-24 * time.Hour)
	for _, l := range leads {
		ov.StatusDistribution[string(l.Status)]++
		scoreSum += l.Score
		if l.Score >= HotLeadThreshold {
			ov.HotLeads++
		}
		if l.LastInteractionAt.After(cutoff) {
			ov.ActiveLeads24h++
		}
	}
	ov.ConversionRate = round1(float64(ov.StatusDistribution[string(model.StatusWon)]) / float64(len(leads)) * 100)
	ov.AvgScore = round1(float64(scoreSum) / float64(len(leads)))
	return ov
}

func (e *Engine) funnel(leads []*model.Lead) Funnel {
	f := Funnel{StageCounts: map[string]int{}, ConversionRates: map[string]float64{}}
	for _, st := range model.FunnelStages {
		f.StageCounts[string(st)] = 0
	}
	for _, l := range leads {
		f.StageCounts[string(l.Status)]++
	}
	// Stage-to-stage rates stop before "lost", which is an exit and not a
	// funnel progression.
	for i := 0; i < len(model.FunnelStages)-2; i++ {
		cur := string(model.FunnelStages[i])
		next := string(model.FunnelStages[i+1])
		rate := 0.0
		if f.StageCounts[cur] > 0 {
			rate = round1(float64(f.StageCounts[next]) / float64(f.StageCounts[cur]) * 100)
		}
		f.ConversionRates[cur+"_to_"+next] = rate
	}
	return f
}

func (e *Engine) engagement(leads []*model.Lead) Engagement {
	var eng Engagement
	respondedLeads := 0
	for _, l := range leads {
		sawInbound := false
		for _, it := range l.History {
			eng.TotalMessages++
			if it.Direction == model.DirectionInbound {
				eng.InboundMessages++
				sawInbound = true
			} else {
				eng.OutboundMessages++
			}
		}
		if sawInbound {
			respondedLeads++
		}
	}
	if len(leads) > 0 {
		eng.AvgPerLead = round1(float64(eng.TotalMessages) / float64(len(leads)))
		eng.ResponseRate = round1(float64(respondedLeads) / float64(len(leads)) * 100)
	}
	return eng
}

func (e *Engine) vehicleInterest(leads []*model.Lead) map[string]int {
	interest := map[string]int{}
	for _, l := range leads {
		for _, it := range l.History {
			if it.Direction != model.DirectionInbound {
				continue
			}
			lower := strings.ToLower(it.Text)
			for vehicle, keywords := range e.vehicleKeywords {
				for _, kw := range keywords {
					if strings.Contains(lower, kw) {
						interest[vehicle]++
						break
					}
				}
			}
		}
	}
	return interest
}

// BuildAutomationStats aggregates rule executions across the lead set.
func BuildAutomationStats(leads []*model.Lead) AutomationStats {
	stats := AutomationStats{ByRule: map[string]int{}}
	for _, l := range leads {
		if len(l.AutomationCooldowns) == 0 {
			continue
		}
		stats.LeadsWithAutomations++
		for rule := range l.AutomationCooldowns {
			stats.ByRule[rule]++
			stats.TotalExecutions++
		}
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
