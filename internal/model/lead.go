package model

import (
	"errors"
	"time"
)

// LeadStatus is the lifecycle stage of a lead in the sales funnel.
type LeadStatus string

const (
	StatusNew          LeadStatus = "new"
	StatusInProgress   LeadStatus = "in_progress"
	StatusProposalSent LeadStatus = "proposal_sent"
	StatusScheduled    LeadStatus = "scheduled"
	StatusWon          LeadStatus = "won"
	StatusLost         LeadStatus = "lost"
)

// FunnelStages lists every status in funnel order. Used by analytics to
// compute stage counts and stage-to-stage conversion.
var FunnelStages = []LeadStatus{
	StatusNew,
	StatusInProgress,
	StatusProposalSent,
	StatusScheduled,
	StatusWon,
	StatusLost,
}

func (s LeadStatus) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusProposalSent, StatusScheduled, StatusWon, StatusLost:
		return true
	}
	return false
}

// Closed reports whether the lead left the funnel. Closed leads are
// excluded from inactivity queries and re-engagement rules.
func (s LeadStatus) Closed() bool {
	return s == StatusWon || s == StatusLost
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// InteractionKind tags how an outbound message was produced.
type InteractionKind string

const (
	KindNormal    InteractionKind = "normal"
	KindAutomated InteractionKind = "automated"
	KindManual    InteractionKind = "manual"
)

// Interaction is one message exchanged with a lead. Immutable once
// appended to a lead's history.
type Interaction struct {
	ID        string          `json:"id"`
	Direction Direction       `json:"direction"`
	Text      string          `json:"text"`
	Kind      InteractionKind `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
}

// Note is a free-text annotation on a lead. Written both by operators and
// by the system (status-change audit entries).
type Note struct {
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Lead is the durable per-phone record. One exists per unique normalized
// phone number; it is never deleted, only soft-retired via won/lost.
type Lead struct {
	Phone       string     `json:"phone"`
	DisplayName string     `json:"display_name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Status      LeadStatus `json:"status"`

	// Score is derived exclusively from the scoring policy applied over
	// History. It is never written directly.
	Score int `json:"score"`

	AssignedRep string   `json:"assigned_rep,omitempty"`
	Tags        []string `json:"tags,omitempty"`

	CreatedAt         time.Time `json:"created_at"`
	LastInteractionAt time.Time `json:"last_interaction_at"`

	History []Interaction `json:"history"`
	Notes   []Note        `json:"notes"`

	// AutomationCooldowns maps rule name to the last time that rule fired
	// for this lead.
	AutomationCooldowns map[string]time.Time `json:"automation_cooldowns,omitempty"`
}

// AutomatedFollowUps counts outbound interactions produced by the
// automation engine. Rules with a follow-up cap consult this.
func (l *Lead) AutomatedFollowUps() int {
	n := 0
	for _, it := range l.History {
		if it.Direction == DirectionOutbound && it.Kind == KindAutomated {
			n++
		}
	}
	return n
}

// LastAutomation returns when the named rule last fired for this lead.
func (l *Lead) LastAutomation(rule string) (time.Time, bool) {
	if l.AutomationCooldowns == nil {
		return time.Time{}, false
	}
	t, ok := l.AutomationCooldowns[rule]
	return t, ok
}

// InactiveFor is the elapsed time since the last recorded interaction.
func (l *Lead) InactiveFor(now time.Time) time.Duration {
	return now.Sub(l.LastInteractionAt)
}

// LeadUpdate is a partial update for CreateOrUpdateLead. Nil fields are
// left untouched. Score is deliberately absent: the only score mutation
// path is interaction recording, so a replay of history always reproduces
// the stored value.
type LeadUpdate struct {
	DisplayName *string     `json:"display_name,omitempty"`
	Email       *string     `json:"email,omitempty"`
	Status      *LeadStatus `json:"status,omitempty"`
	AssignedRep *string     `json:"assigned_rep,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
}

func (u LeadUpdate) Validate() error {
	if u.Status != nil && !u.Status.Valid() {
		return errors.New("invalid lead status: " + string(*u.Status))
	}
	return nil
}
