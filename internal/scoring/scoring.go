// Package scoring turns interaction content into engagement score deltas.
// The keyword table is configuration: the store only sees the Policy
// interface surface (Delta), so the table can be swapped without touching
// persistence.
package scoring

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/pkg/errors"
)

// Score bounds. Applied after every delta.
const (
	MinScore = 0
	MaxScore = 200
)

// Policy maps lowercased keyword occurrences to fixed point values, plus
// a flat bonus for inbound messages (the lead actively responded).
type Policy struct {
	KeywordWeights map[string]int `json:"keyword_weights"`
	InboundBonus   int            `json:"inbound_bonus"`
}

// DefaultPolicy is the dealership's seed table. Keywords are matched as
// substrings of the lowercased text; each present keyword contributes its
// weight once, and weights are additive across keywords.
func DefaultPolicy() *Policy {
	return &Policy{
		KeywordWeights: map[string]int{
			"financiamento": 15,
			"financiar":     15,
			"preço":         10,
			"preco":         10,
			"test drive":    30,
			"teste":         20,
			"agendar":       25,
			"comprar":       40,
			"quando":        10,
			"disponível":    8,
			"disponivel":    8,
			"cores":         5,
			"modelo":        8,
		},
		InboundBonus: 2,
	}
}

// LoadPolicy reads a policy from a JSON file. An empty path returns the
// default table.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scoring policy")
	}
	p := &Policy{}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, errors.Wrap(err, "parse scoring policy")
	}
	if len(p.KeywordWeights) == 0 {
		return nil, errors.New("scoring policy has no keyword weights")
	}
	return p, nil
}

// Delta computes the score adjustment for a single interaction. Pure:
// same input always yields the same delta.
func (p *Policy) Delta(direction model.Direction, text string) int {
	lower := strings.ToLower(text)
	delta := 0
	for keyword, weight := range p.KeywordWeights {
		if strings.Contains(lower, keyword) {
			delta += weight
		}
	}
	if direction == model.DirectionInbound {
		delta += p.InboundBonus
	}
	return delta
}

// Clamp bounds a score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// Replay folds the policy over a full history from zero. The result must
// equal the incrementally maintained score for any lead.
func (p *Policy) Replay(history []model.Interaction) int {
	score := 0
	for _, it := range history {
		score = Clamp(score + p.Delta(it.Direction, it.Text))
	}
	return score
}
