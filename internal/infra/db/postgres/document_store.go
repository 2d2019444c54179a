package postgres

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/oklog/ulid/v2"

	"edu-storefront/internal/domain"
	"edu-storefront/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*DocumentStore)(nil)

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// DocumentStore keeps documents as JSONB rows in a single table keyed by
// (collection, id). Update merges top-level keys with the jsonb || operator.
type DocumentStore struct {
	db executor

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return newDocumentStore(pool)
}

func newDocumentStore(db executor) *DocumentStore {
	return &DocumentStore{db: db, entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (s *DocumentStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *DocumentStore) Create(ctx context.Context, collection string, doc repository.Document) (string, error) {
	if collection == "" {
		return "", domain.Validationf("empty collection")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	id := s.newID()
	const q = `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb);`
	if _, err := s.db.Exec(ctx, q, collection, id, string(body)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, partial repository.Document) error {
	body, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	const q = `UPDATE documents SET body = body || $3::jsonb, updated_at = NOW() WHERE collection = $1 AND id = $2;`
	tag, err := s.db.Exec(ctx, q, collection, id, string(body))
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (repository.Document, error) {
	const q = `SELECT body::text FROM documents WHERE collection = $1 AND id = $2;`
	var body string
	if err := s.db.QueryRow(ctx, q, collection, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select document: %w", err)
	}
	var out repository.Document
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}
