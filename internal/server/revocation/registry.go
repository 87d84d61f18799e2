// Package revocation tracks access tokens that were invalidated before
// their natural expiry.
package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
)

// MaxTTL bounds every entry: a revoked token cannot outlive its own exp,
// so nothing needs to be kept longer than one token lifetime.
const MaxTTL = common.AccessTokenLifetime

// Store is the shared revocation table every server instance consults.
type Store interface {
	Insert(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string, now time.Time) (bool, error)
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Registry answers "has this jti been revoked". Writes go to the shared
// store; when it fails the registry keeps working from a process-local set
// and says so in the log.
type Registry struct {
	store  Store
	clock  timex.Clock
	logger logging.Logger

	mu       sync.Mutex
	local    map[string]time.Time
	degraded bool
}

func NewRegistry(store Store, logger logging.Logger, clock timex.Clock) *Registry {
	return &Registry{
		store:  store,
		clock:  clock,
		logger: logger.With("module", "revocation"),
		local:  make(map[string]time.Time),
	}
}

// NewLocalRegistry keeps revocations in this process only. Another instance
// will still accept a token revoked here, so it is for single-instance
// development setups.
func NewLocalRegistry(logger logging.Logger, clock timex.Clock) *Registry {
	r := NewRegistry(nil, logger, clock)
	r.logger.Warn(context.Background(), "revocation registry is process-local; revocations are not shared between instances")
	return r
}

// Revoke marks jti as revoked for ttl, clamped to MaxTTL. A non-positive ttl
// means the remaining lifetime is unknown and MaxTTL is used.
func (r *Registry) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	until := r.clock().Add(ttl)

	if r.store != nil {
		err := r.store.Insert(ctx, jti, until)
		if err == nil {
			r.recovered(ctx)
			return nil
		}
		r.degrade(ctx, "revoke", err)
	}

	r.mu.Lock()
	if _, ok := r.local[jti]; !ok {
		r.local[jti] = until
	}
	r.mu.Unlock()
	return nil
}

// IsRevoked never fails: an unreachable shared store falls back to the
// local set.
func (r *Registry) IsRevoked(ctx context.Context, jti string) bool {
	now := r.clock()

	if r.store != nil {
		found, err := r.store.IsRevoked(ctx, jti, now)
		if err != nil {
			r.degrade(ctx, "lookup", err)
		} else {
			r.recovered(ctx)
			if found {
				return true
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	until, ok := r.local[jti]
	return ok && now.Before(until)
}

// Purge drops entries whose revocation window has passed.
func (r *Registry) Purge(ctx context.Context) error {
	now := r.clock()

	r.mu.Lock()
	for jti, until := range r.local {
		if !now.Before(until) {
			delete(r.local, jti)
		}
	}
	r.mu.Unlock()

	if r.store == nil {
		return nil
	}
	n, err := r.store.Purge(ctx, now)
	if err != nil {
		return err
	}
	if n > 0 {
		r.logger.Debug(ctx, "purged revocations", "count", n)
	}
	return nil
}

// Degraded reports whether the last shared-store call failed.
func (r *Registry) Degraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.degraded
}

func (r *Registry) degrade(ctx context.Context, op string, err error) {
	r.mu.Lock()
	first := !r.degraded
	r.degraded = true
	r.mu.Unlock()

	if first {
		r.logger.Warn(ctx, "shared revocation store unavailable, using process-local set", "op", op, "error", err)
	}
}

func (r *Registry) recovered(ctx context.Context) {
	r.mu.Lock()
	was := r.degraded
	r.degraded = false
	r.mu.Unlock()

	if was {
		r.logger.Info(ctx, "shared revocation store reachable again")
	}
}
