package revocations

import (
	"context"
	"time"
)

type Repository interface {
	Insert(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	Purge(ctx context.Context, now time.Time) (int64, error)
}
