// Package store persists one JSON document per lead, keyed by normalized
// phone number. Records are written with an atomic tmp-file-then-rename
// replace so a reader never observes a partial write, and corruption of
// one record never affects another.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/autovendas/lead-gateway/internal/model"
	"github.com/autovendas/lead-gateway/pkg/logger"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no record exists for a phone.
	ErrNotFound = errors.New("lead not found")
	// ErrCorrupted is returned when a record exists but cannot be parsed.
	// Callers that only care about presence may treat it as absent; the
	// distinction is kept so a broken read is never silently reported as
	// "legitimately empty".
	ErrCorrupted = errors.New("lead record corrupted")
)

const fileSuffix = ".json"

// ScoringPolicy is the pluggable score computation applied on every
// recorded interaction.
type ScoringPolicy interface {
	Delta(direction model.Direction, text string) int
}

// LeadStore is safe for concurrent use. Writes for a single phone are
// serialized through a per-phone mutex; reads and writes for different
// phones never block each other.
type LeadStore struct {
	dir        string
	policy     ScoringPolicy
	defaultRep string

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

// Option configures a LeadStore.
type Option func(*LeadStore)

// WithDefaultRep sets the sales rep assigned to newly created leads.
func WithDefaultRep(rep string) Option {
	return func(s *LeadStore) { s.defaultRep = rep }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *LeadStore) { s.now = now }
}

func New(dir string, policy ScoringPolicy, opts ...Option) (*LeadStore, error) {
	if dir == "" {
		return nil, errors.New("leads directory is required")
	}
	if policy == nil {
		return nil, errors.New("scoring policy is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create leads directory: %w", err)
	}
	s := &LeadStore{
		dir:    dir,
		policy: policy,
		locks:  map[string]*sync.Mutex{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NormalizePhone strips formatting characters, keeping digits and a
// leading plus. "whatsapp:+55 (47) 9999-0000" and "+5547 99990000" map to
// the same record.
func NormalizePhone(phone string) string {
	phone = strings.TrimPrefix(strings.TrimSpace(phone), "whatsapp:")
	var b strings.Builder
	for i, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (s *LeadStore) path(phone string) string {
	name := strings.TrimPrefix(NormalizePhone(phone), "+")
	return filepath.Join(s.dir, name+fileSuffix)
}

func (s *LeadStore) lockFor(phone string) *sync.Mutex {
	key := NormalizePhone(phone)
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// GetLead returns the stored record for a phone. ErrNotFound when no
// record exists, ErrCorrupted when one exists but cannot be decoded.
func (s *LeadStore) GetLead(phone string) (*model.Lead, error) {
	return s.readLead(s.path(phone))
}

func (s *LeadStore) readLead(path string) (*model.Lead, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read lead file: %w", err)
	}
	lead := &model.Lead{}
	if err := json.Unmarshal(raw, lead); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, filepath.Base(path), err)
	}
	return lead, nil
}

// loadOrNew reads the lead for mutation, treating a missing or corrupted
// record as absent. A corrupted record is logged and replaced on the next
// write; it never aborts the mutation.
func (s *LeadStore) loadOrNew(phone string) (lead *model.Lead, created bool) {
	existing, err := s.GetLead(phone)
	switch {
	case err == nil:
		return existing, false
	case errors.Is(err, ErrCorrupted):
		logger.Warn("replacing corrupted lead record", "phone", NormalizePhone(phone), "error", err)
	case !errors.Is(err, ErrNotFound):
		logger.Warn("failed to read lead record, recreating", "phone", NormalizePhone(phone), "error", err)
	}
	return s.newLead(phone), true
}

func (s *LeadStore) newLead(phone string) *model.Lead {
	now := s.now()
	return &model.Lead{
		Phone:               NormalizePhone(phone),
		Status:              model.StatusNew,
		Score:               0,
		AssignedRep:         s.defaultRep,
		CreatedAt:           now,
		LastInteractionAt:   now,
		History:             []model.Interaction{},
		Notes:               []model.Note{},
		AutomationCooldowns: map[string]time.Time{},
	}
}

// CreateOrUpdateLead creates the lead with defaults when absent, or
// applies the non-nil fields of the update when present. An update to an
// existing lead refreshes LastInteractionAt.
func (s *LeadStore) CreateOrUpdateLead(phone string, upd model.LeadUpdate) (*model.Lead, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}
	l := s.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	lead, created := s.loadOrNew(phone)
	if !created {
		lead.LastInteractionAt = s.now()
	}
	if upd.DisplayName != nil {
		lead.DisplayName = *upd.DisplayName
	}
	if upd.Email != nil {
		lead.Email = *upd.Email
	}
	if upd.Status != nil {
		lead.Status = *upd.Status
	}
	if upd.AssignedRep != nil {
		lead.AssignedRep = *upd.AssignedRep
	}
	if upd.Tags != nil {
		lead.Tags = upd.Tags
	}
	if err := s.writeLead(lead); err != nil {
		return nil, err
	}
	if created {
		logger.Info("lead created", "phone", lead.Phone)
	}
	return lead, nil
}

// AddInteraction appends one message to the lead's history, creating the
// lead when absent. The scoring policy's delta is applied and clamped to
// [0, 200], and LastInteractionAt is set to the interaction timestamp.
func (s *LeadStore) AddInteraction(phone string, direction model.Direction, text string, kind model.InteractionKind) (*model.Lead, error) {
	if kind == "" {
		kind = model.KindNormal
	}
	l := s.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	lead, _ := s.loadOrNew(phone)
	it := model.Interaction{
		ID:        uuid.NewString(),
		Direction: direction,
		Text:      text,
		Kind:      kind,
		Timestamp: s.now(),
	}
	lead.History = append(lead.History, it)
	lead.LastInteractionAt = it.Timestamp
	lead.Score = clampScore(lead.Score + s.policy.Delta(direction, text))

	if err := s.writeLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 200 {
		return 200
	}
	return score
}

// AddNote appends a free-text annotation, creating the lead when absent.
func (s *LeadStore) AddNote(phone, text, author string) (*model.Lead, error) {
	l := s.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	lead, _ := s.loadOrNew(phone)
	lead.Notes = append(lead.Notes, model.Note{
		Text:      text,
		Author:    author,
		Timestamp: s.now(),
	})
	if err := s.writeLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// UpdateStatus sets the lead's status and appends an audit note naming
// the old and new values. Unlike the other mutations it does NOT create
// missing leads: ErrNotFound is returned and callers must check.
func (s *LeadStore) UpdateStatus(phone string, newStatus model.LeadStatus) (*model.Lead, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("invalid lead status: %q", newStatus)
	}
	l := s.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	lead, err := s.GetLead(phone)
	if err != nil {
		if errors.Is(err, ErrCorrupted) {
			// A record we cannot decode cannot be transitioned.
			logger.Warn("status update on corrupted lead record", "phone", NormalizePhone(phone), "error", err)
			return nil, ErrNotFound
		}
		return nil, err
	}

	oldStatus := lead.Status
	now := s.now()
	lead.Status = newStatus
	lead.LastInteractionAt = now
	lead.Notes = append(lead.Notes, model.Note{
		Text:      fmt.Sprintf("status changed from %q to %q", oldStatus, newStatus),
		Author:    "system",
		Timestamp: now,
	})
	if err := s.writeLead(lead); err != nil {
		return nil, err
	}
	logger.Info("lead status updated", "phone", lead.Phone, "old", string(oldStatus), "new", string(newStatus))
	return lead, nil
}

// RecordAutomation stamps the cooldown timestamp for a (lead, rule) pair.
// Used by the automation engine after executing a rule's action.
func (s *LeadStore) RecordAutomation(phone, rule string, at time.Time) (*model.Lead, error) {
	l := s.lockFor(phone)
	l.Lock()
	defer l.Unlock()

	lead, err := s.GetLead(phone)
	if err != nil {
		return nil, err
	}
	if lead.AutomationCooldowns == nil {
		lead.AutomationCooldowns = map[string]time.Time{}
	}
	lead.AutomationCooldowns[rule] = at
	if err := s.writeLead(lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// GetAllLeads enumerates every stored lead. Order is not guaranteed.
// Records that fail to decode are skipped with a warning so one corrupt
// file never breaks enumeration.
func (s *LeadStore) GetAllLeads() ([]*model.Lead, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list leads directory: %w", err)
	}
	leads := make([]*model.Lead, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		lead, err := s.readLead(filepath.Join(s.dir, e.Name()))
		if err != nil {
			logger.Warn("skipping unreadable lead record", "file", e.Name(), "error", err)
			continue
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

// GetLeadsByStatus filters the full lead set by status.
func (s *LeadStore) GetLeadsByStatus(status model.LeadStatus) ([]*model.Lead, error) {
	all, err := s.GetAllLeads()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Lead, 0)
	for _, l := range all {
		if l.Status == status {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetHotLeads returns leads with score >= minScore, highest score first.
func (s *LeadStore) GetHotLeads(minScore int) ([]*model.Lead, error) {
	all, err := s.GetAllLeads()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Lead, 0)
	for _, l := range all {
		if l.Score >= minScore {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// GetInactiveLeads returns open leads whose last interaction is older
// than the threshold. Won and lost leads are excluded.
func (s *LeadStore) GetInactiveLeads(hours int) ([]*model.Lead, error) {
	all, err := s.GetAllLeads()
	if err != nil {
		return nil, err
	}
	cutoff := s.now().Add(-time.Duration(hours) * time.Hour)
	out := make([]*model.Lead, 0)
	for _, l := range all {
		if l.Status.Closed() {
			continue
		}
		if l.LastInteractionAt.Before(cutoff) {
			out = append(out, l)
		}
	}
	return out, nil
}

// GetConversationContext renders the last maxMessages interactions as a
// "Cliente:"/"Vendedor:" transcript for the response generator. An
// unknown phone yields an empty context, not an error.
func (s *LeadStore) GetConversationContext(phone string, maxMessages int) (string, error) {
	lead, err := s.GetLead(phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrCorrupted) {
			return "", nil
		}
		return "", err
	}
	if maxMessages <= 0 {
		maxMessages = 10
	}
	history := lead.History
	if len(history) > maxMessages {
		history = history[len(history)-maxMessages:]
	}
	lines := make([]string, 0, len(history))
	for _, it := range history {
		speaker := "Vendedor"
		if it.Direction == model.DirectionInbound {
			speaker = "Cliente"
		}
		lines = append(lines, speaker+": "+it.Text)
	}
	return strings.Join(lines, "\n"), nil
}

// writeLead persists a record with atomic replace semantics: the document
// is written to a sibling tmp file and renamed over the visible path.
// Caller must hold the phone's lock.
func (s *LeadStore) writeLead(lead *model.Lead) error {
	raw, err := json.MarshalIndent(lead, "", "  ")
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	path := s.path(lead.Phone)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write lead tmp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace lead file: %w", err)
	}
	return nil
}
