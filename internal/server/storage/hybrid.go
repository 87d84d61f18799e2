package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/logging"
)

// Strategy selects which tiers a Hybrid call touches.
type Strategy int

const (
	StrategyLocalOnly Strategy = iota
	StrategyRemoteWithFallback
)

func (s Strategy) String() string {
	switch s {
	case StrategyLocalOnly:
		return "local-only"
	case StrategyRemoteWithFallback:
		return "remote-with-fallback"
	default:
		return "unknown"
	}
}

// Hybrid prefers the remote tier and falls back to local disk. The strategy
// is resolved at the start of every call, never cached.
type Hybrid struct {
	local   Backend
	remote  Backend
	resolve func(ctx context.Context) Strategy
	logger  logging.Logger
}

type HybridOption func(*Hybrid)

// WithStrategy pins the strategy instead of deriving it from the tiers.
func WithStrategy(s Strategy) HybridOption {
	return func(h *Hybrid) {
		h.resolve = func(context.Context) Strategy { return s }
	}
}

// NewHybrid combines local with an optional remote tier (nil disables it).
func NewHybrid(local, remote Backend, logger logging.Logger, opts ...HybridOption) *Hybrid {
	h := &Hybrid{
		local:  local,
		remote: remote,
		logger: logger.With("module", "storage"),
	}
	h.resolve = func(context.Context) Strategy {
		if h.remote != nil {
			return StrategyRemoteWithFallback
		}
		return StrategyLocalOnly
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hybrid) tiers(ctx context.Context) []namedBackend {
	if h.resolve(ctx) == StrategyRemoteWithFallback && h.remote != nil {
		return []namedBackend{{"remote", h.remote}, {"local", h.local}}
	}
	return []namedBackend{{"local", h.local}}
}

type namedBackend struct {
	name string
	Backend
}

// Save stops at the first tier that accepts the blob. After a remote write
// any stale local copy from an earlier fallback is removed.
func (h *Hybrid) Save(ctx context.Context, owner, name string, data []byte) error {
	if err := validate(owner, name); err != nil {
		return err
	}

	var errs []error
	for _, t := range h.tiers(ctx) {
		err := t.Save(ctx, owner, name, data)
		if err == nil {
			if t.name == "remote" {
				if err := h.local.Delete(ctx, owner, name); err != nil && !errors.Is(err, common.ErrorNotFound) {
					h.logger.Warn(ctx, "stale local copy not removed", "owner", owner, "name", name, "error", err)
				}
			}
			return nil
		}
		h.logger.Warn(ctx, "storage tier save failed", "tier", t.name, "owner", owner, "name", name, "error", err)
		errs = append(errs, err)
	}
	return allFailed(errs)
}

func (h *Hybrid) Read(ctx context.Context, owner, name string) ([]byte, error) {
	if err := validate(owner, name); err != nil {
		return nil, err
	}

	var errs []error
	for _, t := range h.tiers(ctx) {
		data, err := t.Read(ctx, owner, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			h.logger.Warn(ctx, "storage tier read failed", "tier", t.name, "owner", owner, "name", name, "error", err)
		}
		errs = append(errs, err)
	}
	return nil, allFailed(errs)
}

// List merges the names from every reachable tier, since fallback writes
// may have left some blobs only on local disk.
func (h *Hybrid) List(ctx context.Context, owner string) ([]string, error) {
	if err := ValidateName(owner); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var (
		errs []error
		ok   bool
	)
	for _, t := range h.tiers(ctx) {
		names, err := t.List(ctx, owner)
		if err != nil {
			h.logger.Warn(ctx, "storage tier list failed", "tier", t.name, "owner", owner, "error", err)
			errs = append(errs, err)
			continue
		}
		ok = true
		for _, n := range names {
			seen[n] = struct{}{}
		}
	}
	if !ok {
		return nil, allFailed(errs)
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the blob from every tier. It succeeds once any tier has
// deleted it; failures on the other tiers are logged. When no tier deleted
// the blob, an unreachable tier makes the result ErrStorageUnavailable since
// the blob may still live there.
func (h *Hybrid) Delete(ctx context.Context, owner, name string) error {
	if err := validate(owner, name); err != nil {
		return err
	}

	var (
		errs    []error
		deleted bool
	)
	for _, t := range h.tiers(ctx) {
		err := t.Delete(ctx, owner, name)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, common.ErrorNotFound):
			errs = append(errs, err)
		default:
			h.logger.Warn(ctx, "storage tier delete failed", "tier", t.name, "owner", owner, "name", name, "error", err)
			errs = append(errs, err)
		}
	}
	if deleted {
		return nil
	}
	return allFailed(errs)
}

func allFailed(errs []error) error {
	for _, err := range errs {
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, errors.Join(errs...))
		}
	}
	return common.ErrorNotFound
}
