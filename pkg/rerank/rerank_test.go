package rerank_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/devmem/devmem-go/pkg/rerank"
)

func defaultReranker() *rerank.Reranker {
	return rerank.New(rerank.Weights{}, rerank.Blend{})
}

func TestScore_ExactMatchAllDimensions(t *testing.T) {
	r := defaultReranker()

	context := map[string]string{
		"file":     "internal/db/pool.go",
		"project":  "auth-svc",
		"branch":   "main",
		"language": "go",
	}

	assert.InDelta(t, 1.0, r.Score(context, context), 1e-9)
}

func TestScore_NoOverlap(t *testing.T) {
	r := defaultReranker()

	current := map[string]string{
		"file":     "internal/db/pool.go",
		"project":  "auth-svc",
		"language": "go",
	}
	candidate := map[string]string{
		"file":     "billing/worker.py",
		"project":  "billing-svc",
		"language": "python",
	}

	assert.InDelta(t, 0.0, r.Score(current, candidate), 1e-9)
}

func TestScore_DirectoryPartialCredit(t *testing.T) {
	r := defaultReranker()

	current := map[string]string{"file": "internal/db/pool.go"}
	sameDir := map[string]string{"file": "internal/db/metrics.go"}
	otherDir := map[string]string{"file": "cmd/server/main.go"}
	sameFile := map[string]string{"file": "internal/db/pool.go"}

	exact := r.Score(current, sameFile)
	partial := r.Score(current, sameDir)
	none := r.Score(current, otherDir)

	assert.InDelta(t, 1.0, exact, 1e-9)
	assert.InDelta(t, 0.5, partial, 1e-9) // directory weight over file weight
	assert.InDelta(t, 0.0, none, 1e-9)
	assert.Greater(t, exact, partial)
	assert.Greater(t, partial, none)
}

func TestScore_NeutralWhenNoComparableContext(t *testing.T) {
	r := defaultReranker()

	current := map[string]string{"file": "a.go"}

	assert.InDelta(t, rerank.NeutralScore, r.Score(current, nil), 1e-9)
	assert.InDelta(t, rerank.NeutralScore, r.Score(nil, map[string]string{"file": "a.go"}), 1e-9)
	assert.InDelta(t, rerank.NeutralScore, r.Score(nil, nil), 1e-9)

	// Disjoint keys: nothing is comparable even though both have context.
	assert.InDelta(t, rerank.NeutralScore,
		r.Score(map[string]string{"project": "a"}, map[string]string{"language": "go"}), 1e-9)
}

func TestScore_DenominatorOnlySharedDimensions(t *testing.T) {
	r := defaultReranker()

	// Only project is present in both; a full project match scores 1.0
	// regardless of the candidate missing file and language.
	current := map[string]string{
		"file":     "internal/db/pool.go",
		"project":  "auth-svc",
		"language": "go",
	}
	candidate := map[string]string{"project": "auth-svc"}

	assert.InDelta(t, 1.0, r.Score(current, candidate), 1e-9)
}

func TestBlended(t *testing.T) {
	r := defaultReranker()

	assert.InDelta(t, 0.7*0.8+0.3*0.5, r.Blended(0.8, 0.5), 1e-9)
	assert.InDelta(t, 1.0, r.Blended(1.0, 1.0), 1e-9)
	assert.InDelta(t, 0.0, r.Blended(0.0, 0.0), 1e-9)

	// Out-of-range inputs are clamped.
	assert.LessOrEqual(t, r.Blended(1.5, 1.5), 1.0)
	assert.GreaterOrEqual(t, r.Blended(-0.5, 0.0), 0.0)
}

func TestBlended_ContextBreaksSimilarityTie(t *testing.T) {
	r := defaultReranker()

	sameSimilarity := 0.9
	inContext := r.Blended(sameSimilarity, 1.0)
	outOfContext := r.Blended(sameSimilarity, 0.0)

	assert.Greater(t, inContext, outOfContext)
}

func TestCustomWeights(t *testing.T) {
	r := rerank.New(rerank.Weights{
		File:      1,
		Directory: 0.5,
		Project:   1,
		Branch:    1,
		Language:  1,
	}, rerank.Blend{Similarity: 0.5, Context: 0.5})

	current := map[string]string{"project": "auth-svc", "language": "go"}
	candidate := map[string]string{"project": "auth-svc", "language": "python"}

	// Equal weights, one of two shared dimensions matching.
	assert.InDelta(t, 0.5, r.Score(current, candidate), 1e-9)
	assert.InDelta(t, 0.5*0.8+0.5*0.5, r.Blended(0.8, 0.5), 1e-9)
}
