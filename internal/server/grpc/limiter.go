package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/cryptexdrive/internal/timex"
	"golang.org/x/time/rate"
)

type peerEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// peerLimiter keeps one token bucket per remote address.
type peerLimiter struct {
	mu    sync.Mutex
	peers map[string]*peerEntry
	limit rate.Limit
	burst int
	idle  time.Duration
	clock timex.Clock
}

func newPeerLimiter(limit rate.Limit, burst int, idle time.Duration, clock timex.Clock) *peerLimiter {
	return &peerLimiter{
		peers: make(map[string]*peerEntry),
		limit: limit,
		burst: burst,
		idle:  idle,
		clock: clock,
	}
}

func (l *peerLimiter) Allow(peer string) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.peers[peer]
	if !ok {
		e = &peerEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.peers[peer] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops buckets that have been idle for longer than the idle window.
func (l *peerLimiter) Sweep(context.Context) error {
	cutoff := l.clock().Add(-l.idle)

	l.mu.Lock()
	defer l.mu.Unlock()

	for k, e := range l.peers {
		if e.lastSeen.Before(cutoff) {
			delete(l.peers, k)
		}
	}
	return nil
}

func (l *peerLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.peers)
}
