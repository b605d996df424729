package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"healthpass/internal/documents/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS document_payloads (
	identifier    BIGINT PRIMARY KEY,
	original_code TEXT NOT NULL,
	stored_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore persists payloads in the document_payloads table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure document_payloads schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Store(ctx context.Context, payload models.Payload) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO document_payloads (identifier, original_code)
		VALUES ($1, $2)
		ON CONFLICT (identifier) DO UPDATE SET original_code = EXCLUDED.original_code`,
		int64(payload.Identifier), payload.OriginalCode,
	)
	if err != nil {
		return fmt.Errorf("store payload %s: %w", payload.Identifier, err)
	}
	return nil
}

func (s *PostgresStore) Restore(ctx context.Context) ([]models.Payload, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identifier, original_code
		FROM document_payloads
		ORDER BY stored_at, identifier`)
	if err != nil {
		return nil, fmt.Errorf("restore payloads: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Payload, error) {
		var (
			id   int64
			code string
		)
		if err := row.Scan(&id, &code); err != nil {
			return models.Payload{}, err
		}
		return models.Payload{Identifier: models.Identifier(id), OriginalCode: code}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan payloads: %w", err)
	}
	return payloads, nil
}

func (s *PostgresStore) Remove(ctx context.Context, ids []models.Identifier) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]int64, len(ids))
	for i, id := range ids {
		keys[i] = int64(id)
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM document_payloads WHERE identifier = ANY($1)`, keys); err != nil {
		return fmt.Errorf("remove payloads: %w", err)
	}
	return nil
}
