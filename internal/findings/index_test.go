package findings

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingEmbedder struct{}

func (failingEmbedder) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("model offline")
}

func (failingEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, errors.New("model offline")
}

func TestHashEmbedder_Normalized(t *testing.T) {
	h := NewHashEmbedder()
	ctx := context.Background()

	for _, text := range []string{"token rotation policy", "", "!!!"} {
		vec, err := h.EmbedQuery(ctx, text)
		require.NoError(t, err)
		require.Len(t, vec, DefaultDimensions)

		var sumSq float64
		for _, v := range vec {
			sumSq += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sumSq), 1e-5, "text %q", text)
	}
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	h := &HashEmbedder{Dimensions: 64}
	ctx := context.Background()

	a, err := h.EmbedQuery(ctx, "Cache Eviction")
	require.NoError(t, err)
	docs, err := h.EmbedDocuments(ctx, []string{"cache eviction"})
	require.NoError(t, err)
	assert.Equal(t, a, docs[0], "case and punctuation do not matter")
}

func TestIndex_AddSearch(t *testing.T) {
	idx, err := NewIndex(nil, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, Finding{ID: "task_1", Content: "JWT signing keys are rotated weekly", Metadata: map[string]string{"task_id": "task_1"}}))
	require.NoError(t, idx.Add(ctx, Finding{ID: "task_2", Content: "Redis cache eviction uses LRU"}))
	require.NoError(t, idx.Add(ctx, Finding{ID: "task_3", Content: "Postgres replicas lag under load"}))
	assert.Equal(t, 3, idx.Len())

	matches, err := idx.Search(ctx, "how are JWT keys rotated", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "task_1", matches[0].ID)
	assert.Equal(t, "task_1", matches[0].Metadata["task_id"])
	assert.GreaterOrEqual(t, matches[0].Similarity, matches[1].Similarity)

	all, err := idx.Search(ctx, "anything", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3, "n is capped at the collection size")
}

func TestIndex_EmptyCases(t *testing.T) {
	idx, err := NewIndex(NewHashEmbedder())
	require.NoError(t, err)
	ctx := context.Background()

	matches, err := idx.Search(ctx, "nothing indexed", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)

	assert.ErrorIs(t, idx.Add(ctx, Finding{ID: "x"}), ErrEmptyFinding)

	require.NoError(t, idx.Add(ctx, Finding{ID: "x", Content: "something"}))
	matches, err = idx.Search(ctx, "", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	matches, err = idx.Search(ctx, "something", 0)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestIndex_EmbedderFailure(t *testing.T) {
	idx, err := NewIndex(failingEmbedder{})
	require.NoError(t, err)

	err = idx.Add(context.Background(), Finding{ID: "x", Content: "y"})
	assert.ErrorIs(t, err, ErrEmbedding)
	assert.Equal(t, 0, idx.Len())
}

func TestIndex_Reset(t *testing.T) {
	idx, err := NewIndex(nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, Finding{ID: "a", Content: "alpha"}))
	require.NoError(t, idx.Reset())
	assert.Equal(t, 0, idx.Len())

	require.NoError(t, idx.Add(ctx, Finding{ID: "b", Content: "bravo"}))
	assert.Equal(t, 1, idx.Len())
}
