package core

import "time"

// RememberOption is a function type for configuring Remember operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type RememberOption func(*RememberOptions)

// RememberOptions contains configuration options for Remember operations.
type RememberOptions struct {
	// Context captures the working context at the moment of recording.
	Context map[string]string

	// Metadata contains category-specific structured information.
	Metadata map[string]interface{}

	// Owner identifies the principal the memory belongs to. Overrides any
	// owner key in the context.
	Owner string
}

// WithContext sets the working context for Remember operations.
//
// Example:
//
//	id, _ := agent.RememberCodeAnalysis(ctx, "pkg/server/router.go", analysis,
//	    core.WithContext(map[string]string{
//	        core.ContextKeyFile:    "pkg/server/router.go",
//	        core.ContextKeyProject: "auth-svc",
//	    }))
func WithContext(context map[string]string) RememberOption {
	return func(opts *RememberOptions) {
		opts.Context = context
	}
}

// WithMetadata sets additional metadata for Remember operations. Merged over
// any metadata the convenience wrapper derives itself.
func WithMetadata(metadata map[string]interface{}) RememberOption {
	return func(opts *RememberOptions) {
		opts.Metadata = metadata
	}
}

// WithOwner sets the owning principal for Remember operations.
//
// Example:
//
//	id, _ := agent.RememberConversation(ctx, question, answer, core.WithOwner("dev_42"))
func WithOwner(owner string) RememberOption {
	return func(opts *RememberOptions) {
		opts.Owner = owner
	}
}

// SearchOption is a function type for configuring search operations.
type SearchOption func(*SearchOptions)

// SearchOptions contains configuration options for search operations.
type SearchOptions struct {
	// Categories restricts the search to these collections. Empty means all.
	Categories []Category

	// Limit caps the number of results. Zero uses the configured default.
	Limit int

	// Threshold overrides the configured minimum similarity when >= 0.
	// Negative means use the configured value.
	Threshold float64

	// Owner restricts results to one owning principal.
	Owner string

	// Window restricts results to memories created within this duration
	// before now. Zero means no time restriction.
	Window time.Duration
}

// WithCategories restricts a search to the given categories.
//
// Example:
//
//	result, _ := agent.Search(ctx, "connection pool exhausted",
//	    core.WithCategories(core.CategoryError, core.CategoryDecision))
func WithCategories(categories ...Category) SearchOption {
	return func(opts *SearchOptions) {
		opts.Categories = categories
	}
}

// WithLimit caps the number of search results.
func WithLimit(limit int) SearchOption {
	return func(opts *SearchOptions) {
		opts.Limit = limit
	}
}

// WithThreshold overrides the minimum similarity for this search.
func WithThreshold(threshold float64) SearchOption {
	return func(opts *SearchOptions) {
		opts.Threshold = threshold
	}
}

// WithOwnerFilter restricts search results to one owning principal.
func WithOwnerFilter(owner string) SearchOption {
	return func(opts *SearchOptions) {
		opts.Owner = owner
	}
}

// WithWindow restricts search results to memories created within the given
// duration before now.
//
// Example:
//
//	result, _ := agent.Search(ctx, "flaky integration test",
//	    core.WithWindow(7*24*time.Hour))
func WithWindow(window time.Duration) SearchOption {
	return func(opts *SearchOptions) {
		opts.Window = window
	}
}

func newSearchOptions(opts []SearchOption) *SearchOptions {
	options := &SearchOptions{Threshold: -1}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
