package audit

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, event *models.AuditEvent) error {
	query :=
		`INSERT INTO audit_logs (timestamp, username, action, status, source_address)
		VALUES ($1, $2, $3, $4, $5)
		`

	_, err := r.db.ExecContext(ctx, query, event.Timestamp, event.Username, event.Action, event.Status, event.SourceAddress)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*models.AuditEvent, error) {
	query := `SELECT timestamp, username, action, status, source_address FROM audit_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1
		`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit events: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEvent
	for rows.Next() {
		var item models.AuditEvent
		if err := rows.Scan(&item.Timestamp, &item.Username, &item.Action, &item.Status, &item.SourceAddress); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
