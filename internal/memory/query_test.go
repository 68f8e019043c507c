package memory

import (
	"context"
	"errors"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shrinkingIndex loses one document right after every Count, the way a
// concurrent Delete would, and rejects nResults above its size like chromem.
type shrinkingIndex struct {
	docs    int
	shrinks int
	asked   []int
}

func (s *shrinkingIndex) Count() int {
	n := s.docs
	if s.shrinks > 0 {
		s.shrinks--
		s.docs--
	}
	return n
}

func (s *shrinkingIndex) QueryEmbedding(_ context.Context, _ []float32, n int, _, _ map[string]string) ([]chromem.Result, error) {
	s.asked = append(s.asked, n)
	if n > s.docs {
		return nil, errors.New("nResults must be <= the number of documents in the collection")
	}
	out := make([]chromem.Result, n)
	for i := range out {
		out[i] = chromem.Result{ID: string(rune('a' + i))}
	}
	return out, nil
}

func TestNearest_CollectionShrinksBetweenCountAndQuery(t *testing.T) {
	idx := &shrinkingIndex{docs: 3, shrinks: 1}

	res, err := nearest(context.Background(), idx, nil, 5, nil)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.Equal(t, []int{3, 2}, idx.asked)
}

func TestNearest_EmptiedCollectionIsEmptyResult(t *testing.T) {
	idx := &shrinkingIndex{docs: 1, shrinks: 1}

	res, err := nearest(context.Background(), idx, nil, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, res)
	assert.Equal(t, []int{1}, idx.asked)
}

func TestNearest_GivesUpAfterRepeatedShrinking(t *testing.T) {
	idx := &shrinkingIndex{docs: 10, shrinks: 10}

	_, err := nearest(context.Background(), idx, nil, 10, nil)
	assert.Error(t, err)
	assert.Len(t, idx.asked, maxClampAttempts)
}
