package revocations

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert is write-once: revoking an already revoked jti keeps the first
// expiry.
func (r *PostgresRepository) Insert(ctx context.Context, jti string, until time.Time) error {
	query :=
		`INSERT INTO revoked_tokens (jti, revoked_until) VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
		`

	if _, err := r.db.ExecContext(ctx, query, jti, until); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND revoked_until > $2)`

	var found bool
	if err := r.db.QueryRowContext(ctx, query, jti, now).Scan(&found); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return found, nil
}

func (r *PostgresRepository) Purge(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM revoked_tokens WHERE revoked_until <= $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
