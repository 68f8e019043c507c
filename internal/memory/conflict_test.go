package memory

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/mybrain/internal/identity"
)

// fakeRules is an in-memory RuleStore whose query distance is fixed per id.
type fakeRules struct {
	recs     map[string]Record
	distance map[string]float64
	filters  []Filter
}

func newFakeRules() *fakeRules {
	return &fakeRules{recs: map[string]Record{}, distance: map[string]float64{}}
}

func (f *fakeRules) Query(_ context.Context, _ string, filter Filter, limit int) ([]QueryResult, error) {
	f.filters = append(f.filters, filter)
	var out []QueryResult
	for id, r := range f.recs {
		match := true
		for k, v := range filter {
			if r.Metadata.toMap()[k] != v {
				match = false
			}
		}
		if match {
			out = append(out, QueryResult{Record: r, Distance: f.distance[id]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRules) Add(_ context.Context, id, text string, meta Metadata) error {
	f.recs[id] = Record{ID: id, Document: text, Metadata: meta}
	return nil
}

func (f *fakeRules) Delete(_ context.Context, id string) error {
	delete(f.recs, id)
	return nil
}

func (f *fakeRules) put(id, wb, category string, dist float64) {
	f.recs[id] = Record{ID: id, Document: "text of " + id, Metadata: Metadata{WorkbaseID: wb, Type: TypeRule, Category: category}}
	f.distance[id] = dist
}

func TestDetector_ThresholdIsStrict(t *testing.T) {
	ctx := context.Background()

	at := newFakeRules()
	at.put("r1", "wb", "coding_style", 0.5)
	c, err := NewDetector(at, 0.5).Check(ctx, "x", "wb", "coding_style")
	require.NoError(t, err)
	assert.Nil(t, c, "distance equal to the threshold is not a conflict")

	below := newFakeRules()
	below.put("r1", "wb", "coding_style", 0.5-1e-9)
	c, err = NewDetector(below, 0.5).Check(ctx, "x", "wb", "coding_style")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "r1", c.ID)
	assert.Equal(t, "text of r1", c.Text)
}

func TestDetector_FilterShape(t *testing.T) {
	f := newFakeRules()
	d := NewDetector(f, 0)
	assert.Equal(t, DefaultConflictThreshold, d.Threshold())

	_, err := d.Check(context.Background(), "x", "wb", "")
	require.NoError(t, err)
	_, err = d.Check(context.Background(), "x", "wb", "architecture")
	require.NoError(t, err)

	require.Len(t, f.filters, 2)
	assert.Equal(t, Filter{"workbase_id": "wb", "type": TypeRule}, f.filters[0])
	assert.Equal(t, Filter{"workbase_id": "wb", "type": TypeRule, "category": "architecture"}, f.filters[1])
}

func TestDetector_CategoryNarrowsMatches(t *testing.T) {
	f := newFakeRules()
	f.put("sec", "wb", "security", 0.1)
	d := NewDetector(f, 0.5)

	c, err := d.Check(context.Background(), "x", "wb", "coding_style")
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = d.Check(context.Background(), "x", "wb", "")
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRuleWriter_Outcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("clean write", func(t *testing.T) {
		f := newFakeRules()
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		res, err := w.Save(ctx, SaveParams{Content: "use snake_case", Category: "coding_style", WorkbaseID: "wb"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, res.Outcome())
		assert.Equal(t, identity.MemoryID(TypeRule, "wb", "use snake_case"), res.MemoryID)
		assert.Equal(t, SourceAgent, f.recs[res.MemoryID].Metadata.Source)
	})

	t.Run("conflict blocks write", func(t *testing.T) {
		f := newFakeRules()
		f.put("old", "wb", "coding_style", 0.2)
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		res, err := w.Save(ctx, SaveParams{Content: "new", Category: "coding_style", WorkbaseID: "wb"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeConflict, res.Outcome())
		assert.Equal(t, "old", res.MemoryID)
		require.NotNil(t, res.Distance)
		assert.InDelta(t, 0.2, *res.Distance, 1e-9)
		assert.Equal(t, ConflictMessage, res.Message)
		assert.Len(t, f.recs, 1)
	})

	t.Run("force replaces conflict", func(t *testing.T) {
		f := newFakeRules()
		f.put("old", "wb", "coding_style", 0.2)
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		res, err := w.Save(ctx, SaveParams{Content: "new", Category: "coding_style", WorkbaseID: "wb", Force: true})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStoredReplacing, res.Outcome())
		assert.True(t, res.Replaced)
		assert.True(t, res.ConflictResolved)
		assert.NotContains(t, f.recs, "old")
		assert.Equal(t, SourceManual, f.recs[res.MemoryID].Metadata.Source)
	})

	t.Run("replace_id deletes first and skips blocking", func(t *testing.T) {
		f := newFakeRules()
		f.put("target", "wb", "coding_style", 0.3)
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		res, err := w.Save(ctx, SaveParams{Content: "new", Category: "coding_style", WorkbaseID: "wb", ReplaceID: "target"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStored, res.Status)
		assert.True(t, res.Replaced)
		assert.False(t, res.ConflictResolved)
		assert.NotContains(t, f.recs, "target")
	})

	t.Run("replace_id of unknown record", func(t *testing.T) {
		f := newFakeRules()
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		res, err := w.Save(ctx, SaveParams{Content: "new", Category: "c", WorkbaseID: "wb", ReplaceID: "ghost"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeStoredReplacing, res.Outcome())
	})

	t.Run("empty content", func(t *testing.T) {
		f := newFakeRules()
		w := NewRuleWriter(f, NewDetector(f, 0.5))
		_, err := w.Save(ctx, SaveParams{WorkbaseID: "wb"})
		assert.ErrorIs(t, err, ErrMalformedInput)
	})
}
