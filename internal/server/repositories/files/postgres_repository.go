package files

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/dbx"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, file *models.FileMetadata) (*models.FileMetadata, error) {

	query :=
		`INSERT INTO file_metadata (file_hash, filename, owner, size, mime_type, risk_score, analysis, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, upload_time
		`

	err := r.db.QueryRowContext(ctx, query, file.FileHash, file.Filename, file.Owner, file.Size,
		file.MimeType, file.RiskScore, file.Analysis, file.Active).Scan(&file.ID, &file.UploadTime)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateIdentity
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

// DeleteByName drops the active rows for a name about to be overwritten.
func (r *PostgresRepository) DeleteByName(ctx context.Context, owner, filename string) error {
	query := `DELETE FROM file_metadata WHERE owner = $1 AND filename = $2 AND active`

	if _, err := r.db.ExecContext(ctx, query, owner, filename); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListRisky(ctx context.Context, threshold int) ([]*models.FileMetadata, error) {
	query := ` SELECT id, filename, owner, size, risk_score, analysis FROM file_metadata
		WHERE active AND risk_score > $1
		ORDER BY id
		`
	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to select files: %w", err)
	}

	var result []*models.FileMetadata

	defer rows.Close()
	for rows.Next() {
		var item = models.FileMetadata{Active: true}
		err := rows.Scan(&item.ID, &item.Filename, &item.Owner, &item.Size, &item.RiskScore, &item.Analysis)
		if err != nil {
			return nil, err
		}
		result = append(result, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PostgresRepository) Quarantine(ctx context.Context, id int64, newName string) error {

	query := `UPDATE file_metadata SET active = FALSE, filename = $2 WHERE id = $1 AND active`
	result, err := r.db.ExecContext(ctx, query, id, newName)
	if err != nil {
		return fmt.Errorf("failed to quarantine file: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected != 1 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context, warnFrom, criticalFrom int) (*models.FileStats, error) {
	query := `SELECT COUNT(*),
		COALESCE(AVG(risk_score), 0)::float8,
		COUNT(*) FILTER (WHERE NOT active),
		COUNT(*) FILTER (WHERE risk_score < $1),
		COUNT(*) FILTER (WHERE risk_score >= $1 AND risk_score < $2),
		COUNT(*) FILTER (WHERE risk_score >= $2)
		FROM file_metadata
		`
	var st models.FileStats
	err := r.db.QueryRowContext(ctx, query, warnFrom, criticalFrom).
		Scan(&st.Total, &st.AvgRisk, &st.Quarantined, &st.Safe, &st.Warning, &st.Critical)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate files: %w", err)
	}
	return &st, nil
}
