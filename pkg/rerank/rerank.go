// Package rerank blends semantic similarity with structural context overlap.
//
// Two memory items can be semantically similar yet belong to unrelated
// projects; the re-ranker adjusts raw similarity scores by how much of the
// caller's current working context (file, project, branch, language) each
// candidate shares.
package rerank

import "path/filepath"

// Well-known context dimension keys.
const (
	KeyFile     = "file"
	KeyProject  = "project"
	KeyBranch   = "branch"
	KeyLanguage = "language"
)

// NeutralScore is the context score used when no dimension is comparable
// between the two contexts. Absence of evidence is not treated as a mismatch.
const NeutralScore = 0.5

// Weights configures the contribution of each context dimension.
//
// Only dimensions present in both contexts contribute their weight to the
// denominator, so a dimension missing on either side neither helps nor hurts.
// Directory is the partial credit granted within the file dimension when the
// files differ but share a parent directory; it must be below File.
type Weights struct {
	File      float64
	Directory float64
	Project   float64
	Branch    float64
	Language  float64
}

// Blend configures how similarity and context score combine into the final
// ranking score. The two fields should sum to 1. The split is policy, not
// law, but must stay consistent within one deployment.
type Blend struct {
	Similarity float64
	Context    float64
}

// DefaultWeights mirror the relative importance ordering: exact file match
// highest, language lowest.
func DefaultWeights() Weights {
	return Weights{
		File:      0.4,
		Directory: 0.2,
		Project:   0.3,
		Branch:    0.2,
		Language:  0.1,
	}
}

// DefaultBlend weights similarity 0.7 and context 0.3.
func DefaultBlend() Blend {
	return Blend{Similarity: 0.7, Context: 0.3}
}

// Reranker scores candidates against a current working context.
type Reranker struct {
	weights Weights
	blend   Blend
}

// New creates a Reranker. Zero-valued weights or blend fall back to defaults.
func New(weights Weights, blend Blend) *Reranker {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if blend == (Blend{}) {
		blend = DefaultBlend()
	}
	return &Reranker{weights: weights, blend: blend}
}

// Score computes the structural overlap between two contexts, in [0, 1].
//
// Each dimension present in both contexts contributes its weight to the
// denominator; matching dimensions contribute to the numerator. A file-path
// mismatch still earns the Directory weight when both files share a parent
// directory. If no dimension is comparable the score is NeutralScore.
func (r *Reranker) Score(current, candidate map[string]string) float64 {
	if len(current) == 0 || len(candidate) == 0 {
		return NeutralScore
	}

	var num, den float64

	curFile, curOK := current[KeyFile]
	candFile, candOK := candidate[KeyFile]
	if curOK && candOK {
		den += r.weights.File
		switch {
		case curFile == candFile:
			num += r.weights.File
		case filepath.Dir(curFile) == filepath.Dir(candFile):
			num += r.weights.Directory
		}
	}

	for key, weight := range map[string]float64{
		KeyProject:  r.weights.Project,
		KeyBranch:   r.weights.Branch,
		KeyLanguage: r.weights.Language,
	} {
		cur, curOK := current[key]
		cand, candOK := candidate[key]
		if !curOK || !candOK {
			continue
		}
		den += weight
		if cur == cand {
			num += weight
		}
	}

	if den == 0 {
		return NeutralScore
	}
	return num / den
}

// Blended combines a raw similarity score and a context score into the final
// ranking value, clamped to [0, 1].
func (r *Reranker) Blended(similarity, contextScore float64) float64 {
	score := r.blend.Similarity*similarity + r.blend.Context*contextScore
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
