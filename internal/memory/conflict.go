package memory

import (
	"context"
	"fmt"

	"github.com/HendryAvila/mybrain/internal/identity"
)

// DefaultConflictThreshold is the cosine distance under which two rules of
// the same workbase count as duplicates or contradictions.
const DefaultConflictThreshold = 0.5

// Searcher is the nearest-neighbour half of the store.
type Searcher interface {
	Query(ctx context.Context, text string, filter Filter, limit int) ([]QueryResult, error)
}

// RuleStore is what the write path needs from the store.
type RuleStore interface {
	Searcher
	Add(ctx context.Context, id, text string, meta Metadata) error
	Delete(ctx context.Context, id string) error
}

// Conflict is an existing rule close enough to new content to block a write.
type Conflict struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Distance float64  `json:"distance"`
	Metadata Metadata `json:"metadata"`
}

// Detector answers whether a near-duplicate rule already exists.
type Detector struct {
	searcher  Searcher
	threshold float64
}

// NewDetector creates a Detector. A non-positive threshold uses the default.
func NewDetector(s Searcher, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultConflictThreshold
	}
	return &Detector{searcher: s, threshold: threshold}
}

// Threshold returns the configured distance threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// Check returns the nearest rule of the workbase (restricted to category when
// non-empty) if its distance is strictly below the threshold, otherwise nil.
func (d *Detector) Check(ctx context.Context, text, workbaseID, category string) (*Conflict, error) {
	filter := RulesOf(workbaseID)
	if category != "" {
		filter["category"] = category
	}
	res, err := d.searcher.Query(ctx, text, filter, 1)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if len(res) == 0 || !(res[0].Distance < d.threshold) {
		return nil, nil
	}
	return &Conflict{
		ID:       res[0].ID,
		Text:     res[0].Document,
		Distance: res[0].Distance,
		Metadata: res[0].Metadata,
	}, nil
}

// Save outcomes.
const (
	OutcomeStored          = "stored"
	OutcomeStoredReplacing = "stored-with-replacement"
	OutcomeConflict        = "conflict"
)

// ConflictMessage is returned alongside a rejected write.
const ConflictMessage = "A similar or conflicting rule already exists in this category. " +
	"Use force=True to override or provide replace_id."

// SaveParams is the input of the rule write path.
type SaveParams struct {
	Content     string
	Category    string
	WorkbaseID  string
	ProjectName string
	Force       bool
	ReplaceID   string
}

// SaveResult reports what the write path did.
type SaveResult struct {
	Status           string   `json:"status"`
	MemoryID         string   `json:"memory_id"`
	Replaced         bool     `json:"replaced"`
	ConflictResolved bool     `json:"conflict_resolved"`
	SimilarRule      string   `json:"similar_rule,omitempty"`
	Distance         *float64 `json:"distance,omitempty"`
	Message          string   `json:"message,omitempty"`
}

// Outcome names the terminal outcome of the write.
func (r SaveResult) Outcome() string {
	switch {
	case r.Status == OutcomeConflict:
		return OutcomeConflict
	case r.Replaced || r.ConflictResolved:
		return OutcomeStoredReplacing
	default:
		return OutcomeStored
	}
}

// RuleWriter is the conflict-aware insertion path for rules.
type RuleWriter struct {
	store    RuleStore
	detector *Detector
}

// NewRuleWriter creates a RuleWriter over store using detector for checks.
func NewRuleWriter(store RuleStore, detector *Detector) *RuleWriter {
	return &RuleWriter{store: store, detector: detector}
}

// Save stores a rule unless a conflicting rule exists and neither Force nor
// ReplaceID was given. The replace/force deletes and the insert are separate
// operations; the old record may be briefly absent.
func (w *RuleWriter) Save(ctx context.Context, p SaveParams) (SaveResult, error) {
	if p.Content == "" {
		return SaveResult{}, fmt.Errorf("%w: empty content", ErrMalformedInput)
	}
	if p.WorkbaseID == "" {
		return SaveResult{}, fmt.Errorf("%w: empty workbase id", ErrMalformedInput)
	}

	if p.ReplaceID != "" {
		if err := w.store.Delete(ctx, p.ReplaceID); err != nil && !IsNotFound(err) {
			return SaveResult{}, fmt.Errorf("delete replaced rule: %w", err)
		}
	}

	conflict, err := w.detector.Check(ctx, p.Content, p.WorkbaseID, p.Category)
	if err != nil {
		return SaveResult{}, err
	}

	if conflict != nil && !p.Force && p.ReplaceID == "" {
		dist := conflict.Distance
		return SaveResult{
			Status:      OutcomeConflict,
			MemoryID:    conflict.ID,
			SimilarRule: conflict.Text,
			Distance:    &dist,
			Message:     ConflictMessage,
		}, nil
	}

	if p.Force && conflict != nil {
		if err := w.store.Delete(ctx, conflict.ID); err != nil {
			return SaveResult{}, fmt.Errorf("delete conflicting rule: %w", err)
		}
	}

	source := SourceAgent
	if p.Force {
		source = SourceManual
	}
	id := identity.MemoryID(TypeRule, p.WorkbaseID, p.Content)
	meta := Metadata{
		WorkbaseID:  p.WorkbaseID,
		ProjectName: p.ProjectName,
		Type:        TypeRule,
		Category:    p.Category,
		Source:      source,
	}
	if err := w.store.Add(ctx, id, p.Content, meta); err != nil {
		return SaveResult{}, fmt.Errorf("store rule: %w", err)
	}

	return SaveResult{
		Status:           OutcomeStored,
		MemoryID:         id,
		Replaced:         p.ReplaceID != "" || (p.Force && conflict != nil),
		ConflictResolved: conflict != nil,
	}, nil
}
