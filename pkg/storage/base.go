// Package storage provides interfaces and types for collection storage backends.
//
// It defines the Store interface that all backends must satisfy, the Item type
// persisted in collections, and the Registry that maps memory categories to
// their independently-durable collection stores.
package storage

import (
	"context"
	"errors"
	"time"
)

// Predefined errors for storage failures.
var (
	// ErrDimensionMismatch indicates an embedding vector does not match the
	// collection's configured dimensionality. The item is rejected, never coerced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCollectionUnavailable indicates the persistent store for a category
	// could not be opened.
	ErrCollectionUnavailable = errors.New("collection unavailable")
)

// Item represents a memory item persisted in a collection.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package. It mirrors the core.MemoryItem structure.
type Item struct {
	// ID is the unique identifier of the item, unique across all collections.
	ID int64

	// Category names the collection the item belongs to.
	Category string

	// Owner identifies the principal the item belongs to, used for privacy
	// erasure. Extracted from the item's context or metadata at submission.
	Owner string

	// Content is the text payload. It may be anonymized or encrypted upstream;
	// the store treats it as opaque.
	Content string

	// Embedding is the vector embedding for similarity search.
	Embedding []float64

	// Context captures the working context (file, project, branch, language,
	// free-form keys) at the moment of creation.
	Context map[string]string

	// Metadata contains category-specific structured information.
	Metadata map[string]interface{}

	// CreatedAt is when the item was created. Set once, never mutated.
	CreatedAt time.Time

	// Score is the similarity score from query operations (0.0-1.0).
	Score float64
}

// QueryOptions contains options for query operations.
type QueryOptions struct {
	// Limit sets the maximum number of results to return.
	Limit int

	// MinScore sets the minimum similarity score for results.
	MinScore float64

	// Owner, when non-empty, restricts results to items recorded for this
	// owner.
	Owner string

	// Since, when non-zero, restricts results to items created at or after
	// this time.
	Since time.Time
}

// Store defines the interface for a single collection's storage backend.
//
// Each collection is an independent durable unit: losing or corrupting one
// collection must not affect the others.
type Store interface {
	// InsertOrReplace persists an item. Submitting an existing ID overwrites
	// the stored item rather than duplicating it.
	InsertOrReplace(ctx context.Context, item *Item) error

	// Query performs vector similarity search.
	//
	// Returns up to opts.Limit items with cosine similarity >= opts.MinScore,
	// sorted by similarity (highest first), each annotated with its score.
	Query(ctx context.Context, embedding []float64, opts *QueryOptions) ([]*Item, error)

	// Delete removes an item by ID. Deleting an absent ID is a no-op success.
	Delete(ctx context.Context, id int64) error

	// DeleteOwner removes all items belonging to the given owner.
	// Returns the number of items removed. Destructive and irreversible.
	DeleteOwner(ctx context.Context, owner string) (int64, error)

	// Count returns the number of items in the collection.
	Count(ctx context.Context) (int64, error)

	// SizeBytes returns the approximate on-disk size of the collection.
	SizeBytes(ctx context.Context) (int64, error)

	// Close closes the store and releases resources.
	Close() error
}
