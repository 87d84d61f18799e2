package files

import (
	"context"

	"github.com/dmitrijs2005/cryptexdrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.FileMetadata) (*models.FileMetadata, error)
	DeleteByName(ctx context.Context, owner, filename string) error
	ListRisky(ctx context.Context, threshold int) ([]*models.FileMetadata, error)
	Quarantine(ctx context.Context, id int64, newName string) error
	// Stats buckets scores as safe below warnFrom, warning below
	// criticalFrom and critical from there up.
	Stats(ctx context.Context, warnFrom, criticalFrom int) (*models.FileStats, error)
}
