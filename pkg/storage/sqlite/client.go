// Package sqlite provides the SQLite implementation of a collection store.
//
// Each collection lives in its own database file, making every collection an
// independent durable unit: deleting or corrupting one file cannot affect any
// other collection. Vectors are stored as JSON strings in TEXT fields and
// similarity is computed in memory with cosine similarity, which is exact and
// adequate for collections up to roughly 100k items. WAL mode keeps readers
// from blocking behind ingestion writes.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/devmem/devmem-go/pkg/storage"
)

// Store implements storage.Store using a SQLite database file.
type Store struct {
	// db is the SQLite database connection.
	db *sql.DB

	// category is the collection this store holds.
	category string

	// table is the name of the table storing items.
	table string

	// dimensions is the dimension of embedding vectors.
	dimensions int
}

// Config contains configuration for creating a SQLite collection store.
type Config struct {
	// Path is the path to the SQLite database file for this collection.
	Path string

	// Category is the collection name, stamped onto items returned by Query.
	Category string

	// Table is the name of the table to use. Defaults to "items".
	Table string

	// Dimensions is the dimension of embedding vectors.
	Dimensions int
}

// NewStore opens (creating if necessary) the SQLite store for one collection.
//
// Parameters:
//   - cfg: Configuration containing database path, table name, and embedding dimensions
//
// Returns:
//   - *Store: The SQLite store instance
//   - error: Error if database connection or table creation fails
func NewStore(cfg *Config) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "items"
	}

	s := &Store{
		db:         db,
		category:   cfg.Category,
		table:      table,
		dimensions: cfg.Dimensions,
	}

	if err := s.initTables(context.Background()); err != nil {
		return nil, err
	}

	return s, nil
}

// initTables initializes the table structure.
func (s *Store) initTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY,
			owner TEXT,
			content TEXT NOT NULL,
			embedding TEXT NOT NULL,
			context TEXT,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`, s.table)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite: init tables: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner)
	`, s.table, s.table)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("sqlite: init tables: %w", err)
	}

	return nil
}

// InsertOrReplace persists an item, overwriting any existing row with the same ID.
//
// The original created_at survives an overwrite; creation time is set once at
// first ingestion and never mutated.
func (s *Store) InsertOrReplace(ctx context.Context, item *storage.Item) error {
	if s.dimensions > 0 && len(item.Embedding) != s.dimensions {
		return fmt.Errorf("sqlite: insert id %d: got %d dimensions, want %d: %w",
			item.ID, len(item.Embedding), s.dimensions, storage.ErrDimensionMismatch)
	}

	embeddingJSON, err := json.Marshal(item.Embedding)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	contextJSON, err := json.Marshal(item.Context)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner, content, embedding, context, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			content = excluded.content,
			embedding = excluded.embedding,
			context = excluded.context,
			metadata = excluded.metadata
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		item.ID,
		item.Owner,
		item.Content,
		string(embeddingJSON),
		string(contextJSON),
		string(metadataJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert: %w", err)
	}

	return nil
}

// Query performs vector similarity search using cosine similarity.
//
// SQLite has no native vector operations, so candidate rows are loaded and
// scored in memory. This is an exact (brute-force) search.
func (s *Store) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Item, error) {
	if opts == nil {
		opts = &storage.QueryOptions{}
	}
	if opts.Limit == 0 {
		return nil, nil
	}

	whereClause, args := buildWhereClause(opts)

	query := fmt.Sprintf(`
		SELECT id, owner, content, embedding, context, metadata, created_at
		FROM %s
		%s
		ORDER BY id
	`, s.table, whereClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*storage.Item
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}

		score := cosineSimilarity(embedding, item.Embedding)
		item.Score = score

		if score >= opts.MinScore {
			items = append(items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}

	return sortByScore(items, opts.Limit), nil
}

// Delete removes an item by ID. Absent IDs are a no-op success.
func (s *Store) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("sqlite: delete: %w", err)
	}
	return nil
}

// DeleteOwner removes all items belonging to the given owner.
func (s *Store) DeleteOwner(ctx context.Context, owner string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE owner = ?", s.table)

	result, err := s.db.ExecContext(ctx, query, owner)
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete owner: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: delete owner: %w", err)
	}

	return removed, nil
}

// Count returns the number of items in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}
	return count, nil
}

// SizeBytes returns the database size reported by SQLite's page accounting.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("sqlite: size: %w", err)
	}
	return size, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// scanItem scans an item from a result row.
func (s *Store) scanItem(rows *sql.Rows) (*storage.Item, error) {
	var item storage.Item
	item.Category = s.category
	var owner sql.NullString
	var embeddingStr, contextStr, metadataStr string

	err := rows.Scan(
		&item.ID,
		&owner,
		&item.Content,
		&embeddingStr,
		&contextStr,
		&metadataStr,
		&item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan: %w", err)
	}

	item.Owner = owner.String

	if err := json.Unmarshal([]byte(embeddingStr), &item.Embedding); err != nil {
		return nil, fmt.Errorf("sqlite: parse embedding: %w", err)
	}
	if contextStr != "" {
		if err := json.Unmarshal([]byte(contextStr), &item.Context); err != nil {
			return nil, fmt.Errorf("sqlite: parse context: %w", err)
		}
	}
	if metadataStr != "" {
		if err := json.Unmarshal([]byte(metadataStr), &item.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: parse metadata: %w", err)
		}
	}

	return &item, nil
}
