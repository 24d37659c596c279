package sqlite

import (
	"math"
	"sort"
	"strings"

	"github.com/devmem/devmem-go/pkg/storage"
)

// buildWhereClause builds a WHERE clause from the query's owner and time
// restrictions.
func buildWhereClause(opts *storage.QueryOptions) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if opts.Owner != "" {
		conditions = append(conditions, "owner = ?")
		args = append(args, opts.Owner)
	}
	if !opts.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, opts.Since)
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sortByScore sorts items by score (descending) and truncates to limit.
func sortByScore(items []*storage.Item, limit int) []*storage.Item {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})

	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
