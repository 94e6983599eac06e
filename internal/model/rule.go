package model

import "time"

// DefaultRuleCooldown is the minimum gap between two executions of the
// same rule for the same lead.
const DefaultRuleCooldown = 24 * time.Hour

// Condition is the declarative predicate of an automation rule. All set
// fields must pass for a lead to match (logical AND). A condition with no
// fields set matches nothing; a rule without a usable condition is inert
// rather than an error.
type Condition struct {
	// Status must equal this value, when set.
	Status *LeadStatus `json:"status,omitempty"`
	// StatusNotIn rejects leads whose status is in the list.
	StatusNotIn []LeadStatus `json:"status_not_in,omitempty"`
	// ScoreMin requires score >= threshold.
	ScoreMin *int `json:"score_min,omitempty"`
	// InactiveHours requires at least this many hours since the last
	// interaction.
	InactiveHours *int `json:"inactive_hours,omitempty"`
	// MaxFollowUps requires the count of prior automated outbound
	// interactions to be strictly below this value.
	MaxFollowUps *int `json:"max_follow_ups,omitempty"`
}

// Empty reports whether no predicate field is set.
func (c Condition) Empty() bool {
	return c.Status == nil && len(c.StatusNotIn) == 0 && c.ScoreMin == nil &&
		c.InactiveHours == nil && c.MaxFollowUps == nil
}

// Rule pairs a condition with a message-template pool. Name is the unique
// key under which per-lead cooldowns are tracked.
type Rule struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Condition   Condition     `json:"condition"`
	Templates   []string      `json:"templates"`
	Cooldown    time.Duration `json:"cooldown,omitempty"`
}

// EffectiveCooldown returns the rule's cooldown, falling back to the
// 24-hour default when unset.
func (r Rule) EffectiveCooldown() time.Duration {
	if r.Cooldown > 0 {
		return r.Cooldown
	}
	return DefaultRuleCooldown
}
