// Package core provides the main memory agent client for recording and
// retrieving developer memories.
package core

import "time"

// Category names the kind of memory an item records. Each category is
// persisted in its own collection.
type Category string

const (
	// CategoryConversation records dialogue exchanges with metadata such as
	// role or session.
	CategoryConversation Category = "conversation"

	// CategoryCode records code snippets with language and path information.
	CategoryCode Category = "code"

	// CategoryTask records work items with status and classified task kind.
	CategoryTask Category = "task"

	// CategoryDecision records architectural or design decisions with their
	// rationale.
	CategoryDecision Category = "decision"

	// CategoryError records error messages with their resolution (when known)
	// and classified error kind.
	CategoryError Category = "error"

	// CategoryPattern records recurring code or workflow patterns.
	CategoryPattern Category = "pattern"

	// CategoryFile records per-file knowledge such as summaries or
	// annotations.
	CategoryFile Category = "file"
)

// Categories lists every built-in memory category.
var Categories = []Category{
	CategoryConversation,
	CategoryCode,
	CategoryTask,
	CategoryDecision,
	CategoryError,
	CategoryPattern,
	CategoryFile,
}

// Context keys with structural meaning. Contexts are free-form string maps;
// these keys participate in contextual re-ranking and privacy erasure, all
// other keys are carried opaquely.
const (
	// ContextKeyFile is the path of the file being worked on.
	ContextKeyFile = "file"

	// ContextKeyProject is the project or repository name.
	ContextKeyProject = "project"

	// ContextKeyBranch is the version-control branch name.
	ContextKeyBranch = "branch"

	// ContextKeyLanguage is the programming language in use.
	ContextKeyLanguage = "language"

	// ContextKeyOwner identifies the principal the memory belongs to.
	// Used by EraseUserData.
	ContextKeyOwner = "owner"
)

// MemoryItem represents a single memory recorded by the agent.
//
// Example:
//
//	item := &core.MemoryItem{
//	    Category: core.CategoryError,
//	    Content:  "TypeError: cannot unpack non-iterable NoneType object",
//	    Context: map[string]string{
//	        core.ContextKeyFile:    "auth/handlers.py",
//	        core.ContextKeyProject: "auth-svc",
//	    },
//	}
type MemoryItem struct {
	// ID is the unique identifier, unique across all categories.
	// Assigned by the agent at submission.
	ID int64 `json:"id"`

	// Category is the kind of memory, selecting its collection.
	Category Category `json:"category"`

	// Content is the text payload of the memory.
	Content string `json:"content"`

	// Context captures the working context at the moment of creation:
	// file, project, branch, language, plus free-form keys.
	Context map[string]string `json:"context,omitempty"`

	// Metadata contains category-specific structured information, such as
	// a conversation role or an error resolution.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the memory was created. Set once at submission and
	// never mutated, including on overwrite.
	CreatedAt time.Time `json:"created_at"`

	// RelevanceScore is the item's score from search operations (0.0-1.0).
	// For plain search this is raw cosine similarity; for contextual
	// retrieval it is the blended relevance.
	RelevanceScore float64 `json:"relevance_score,omitempty"`

	// SimilarityScore is the raw cosine similarity from the vector search,
	// before any contextual blending.
	SimilarityScore float64 `json:"similarity_score,omitempty"`

	// ContextScore is the structural context overlap used in contextual
	// retrieval (0.0-1.0, 0.5 when no context is comparable).
	ContextScore float64 `json:"context_score,omitempty"`
}

// SearchResult contains the results of a search operation.
type SearchResult struct {
	// Items is the list of matching memories, sorted by descending
	// relevance.
	Items []*MemoryItem

	// Unavailable lists categories that could not be searched. The search
	// degrades to the remaining collections rather than failing.
	Unavailable []string
}

// CategoryStats describes one collection in a stats report.
type CategoryStats struct {
	// Count is the number of items in the collection.
	Count int64 `json:"count"`

	// SizeBytes is the approximate on-disk size of the collection.
	SizeBytes int64 `json:"size_bytes"`
}

// Stats is an aggregate report over every collection.
type Stats struct {
	// TotalItems is the item count across all collections.
	TotalItems int64 `json:"total_items"`

	// TotalSizeBytes is the approximate on-disk size across all collections.
	TotalSizeBytes int64 `json:"total_size_bytes"`

	// Categories maps each category to its per-collection stats.
	Categories map[Category]CategoryStats `json:"categories"`

	// QueueDepth is the number of items waiting in the ingestion queue.
	QueueDepth int `json:"queue_depth"`
}

// ErasureReport describes the outcome of a privacy erasure.
type ErasureReport struct {
	// Removed maps each category to the number of items deleted from it.
	Removed map[Category]int64 `json:"removed"`

	// TotalRemoved is the total number of items deleted.
	TotalRemoved int64 `json:"total_removed"`

	// Failed lists categories whose collections could not be erased.
	// A non-empty list means the erasure must be retried.
	Failed []string `json:"failed,omitempty"`
}
