// Package postgres provides the PostgreSQL + pgvector implementation of a
// collection store.
//
// Each collection maps to its own table, with vectors stored in a pgvector
// vector(N) column and similarity computed by the database with the <=> cosine
// distance operator (similarity = 1 - distance). For large collections an HNSW
// or IVFFlat index can be created, trading exactness for speed; without an
// index pgvector performs an exact scan.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/devmem/devmem-go/pkg/storage"
)

// Store implements storage.Store using PostgreSQL with the pgvector extension.
type Store struct {
	db         *sql.DB
	category   string
	table      string
	dimensions int
}

// Config contains PostgreSQL configuration for one collection store.
type Config struct {
	Host       string
	Port       int
	User       string
	Password   string
	DBName     string
	SSLMode    string
	Category   string
	Table      string
	Dimensions int
}

// IndexType selects the approximate index structure for CreateIndex.
type IndexType string

const (
	// IndexHNSW uses a Hierarchical Navigable Small World graph index.
	IndexHNSW IndexType = "hnsw"

	// IndexIVFFlat uses an Inverted File index with flat vectors.
	IndexIVFFlat IndexType = "ivfflat"
)

// NewStore creates a new PostgreSQL collection store.
func NewStore(cfg *Config) (*Store, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "items_" + cfg.Category
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

// initTables enables pgvector and creates the collection table.
func (s *Store) initTables(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("postgres: create extension: %w", err)
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT PRIMARY KEY,
			owner VARCHAR(255),
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			context JSONB,
			metadata JSONB,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`, s.table, s.dimensions)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("postgres: create table: %w", err)
	}

	indexQuery := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_owner ON %s(owner)
	`, s.table, s.table)
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("postgres: create index: %w", err)
	}

	return nil
}

// InsertOrReplace persists an item, overwriting any existing row with the same ID.
// The original created_at survives an overwrite.
func (s *Store) InsertOrReplace(ctx context.Context, item *storage.Item) error {
	if s.dimensions > 0 && len(item.Embedding) != s.dimensions {
		return fmt.Errorf("postgres: insert id %d: got %d dimensions, want %d: %w",
			item.ID, len(item.Embedding), s.dimensions, storage.ErrDimensionMismatch)
	}

	contextJSON, err := json.Marshal(item.Context)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	metadataJSON, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, owner, content, embedding, context, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			context = EXCLUDED.context,
			metadata = EXCLUDED.metadata
	`, s.table)

	_, err = s.db.ExecContext(ctx, query,
		item.ID,
		item.Owner,
		item.Content,
		vectorToString(item.Embedding),
		string(contextJSON),
		string(metadataJSON),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert: %w", err)
	}

	return nil
}

// Query performs vector similarity search using pgvector's cosine distance.
func (s *Store) Query(ctx context.Context, embedding []float64, opts *storage.QueryOptions) ([]*storage.Item, error) {
	if opts == nil {
		opts = &storage.QueryOptions{}
	}
	if opts.Limit == 0 {
		return nil, nil
	}

	queryVectorStr := vectorToString(embedding)

	whereClause := "WHERE 1 - (embedding <=> $1) >= $2"
	args := []interface{}{queryVectorStr, opts.MinScore}

	if opts.Owner != "" {
		whereClause += fmt.Sprintf(" AND owner = $%d", len(args)+1)
		args = append(args, opts.Owner)
	}
	if !opts.Since.IsZero() {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", len(args)+1)
		args = append(args, opts.Since)
	}

	query := fmt.Sprintf(`
		SELECT id, owner, content, context, metadata, created_at,
			1 - (embedding <=> $1) AS similarity
		FROM %s
		%s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, s.table, whereClause, len(args)+1)

	args = append(args, opts.Limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*storage.Item
	for rows.Next() {
		item, err := s.scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}

	return items, nil
}

// Delete removes an item by ID. Absent IDs are a no-op success.
func (s *Store) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table)
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("postgres: delete: %w", err)
	}
	return nil
}

// DeleteOwner removes all items belonging to the given owner.
func (s *Store) DeleteOwner(ctx context.Context, owner string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE owner = $1", s.table)

	result, err := s.db.ExecContext(ctx, query, owner)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete owner: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: delete owner: %w", err)
	}

	return removed, nil
}

// Count returns the number of items in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count: %w", err)
	}
	return count, nil
}

// SizeBytes returns the total relation size of the collection table.
func (s *Store) SizeBytes(ctx context.Context) (int64, error) {
	var size int64
	err := s.db.QueryRowContext(ctx, "SELECT pg_total_relation_size($1)", s.table).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("postgres: size: %w", err)
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

// CreateIndex creates an approximate vector index on the collection.
//
// Approximate indexes are intended for collections too large for exact scans;
// HNSW typically sustains recall@k above 95% with default parameters.
func (s *Store) CreateIndex(ctx context.Context, indexType IndexType) error {
	switch indexType {
	case IndexHNSW:
		query := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
			USING hnsw (embedding vector_cosine_ops)
		`, s.table, s.table)
		_, err := s.db.ExecContext(ctx, query)
		return err
	case IndexIVFFlat:
		query := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s
			USING ivfflat (embedding vector_cosine_ops)
		`, s.table, s.table)
		_, err := s.db.ExecContext(ctx, query)
		return err
	default:
		return fmt.Errorf("postgres: unsupported index type: %s", indexType)
	}
}

// scanItem scans a single item from a similarity query row.
func (s *Store) scanItem(rows *sql.Rows) (*storage.Item, error) {
	var item storage.Item
	item.Category = s.category

	var owner sql.NullString
	var contextBytes, metadataBytes []byte
	var similarity float64

	err := rows.Scan(
		&item.ID,
		&owner,
		&item.Content,
		&contextBytes,
		&metadataBytes,
		&item.CreatedAt,
		&similarity,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}

	item.Owner = owner.String
	item.Score = similarity

	if len(contextBytes) > 0 {
		if err := json.Unmarshal(contextBytes, &item.Context); err != nil {
			return nil, fmt.Errorf("postgres: parse context: %w", err)
		}
	}
	if len(metadataBytes) > 0 {
		if err := json.Unmarshal(metadataBytes, &item.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: parse metadata: %w", err)
		}
	}

	return &item, nil
}
