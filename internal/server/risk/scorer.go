// Package risk scores uploaded content. Scores run from 0 to 100.
package risk

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Thresholds applied by callers of a Scorer.
const (
	// RevokeThreshold and above revokes the uploader's token immediately.
	RevokeThreshold = 90
	// QuarantineThreshold is exceeded by files the background monitor
	// quarantines.
	QuarantineThreshold = 80
	// SafeBelow is the score under which content is considered safe.
	SafeBelow = 70
	// WarningFrom and CriticalFrom bound the dashboard risk buckets.
	WarningFrom  = 50
	CriticalFrom = QuarantineThreshold
)

type Input struct {
	Owner    string
	Filename string
	Data     []byte
}

type Assessment struct {
	Score    int
	Analysis string
	Safe     bool
}

type Scorer interface {
	Score(ctx context.Context, in Input) (Assessment, error)
}

// HeuristicScorer flags unexpected file types and large payloads.
type HeuristicScorer struct {
	Allowed  map[string]struct{}
	MaxBytes int
}

func NewHeuristicScorer() *HeuristicScorer {
	allowed := map[string]struct{}{}
	for _, ext := range []string{".pdf", ".png", ".jpg", ".jpeg", ".txt", ".docx"} {
		allowed[ext] = struct{}{}
	}
	return &HeuristicScorer{Allowed: allowed, MaxBytes: 5 * 1024 * 1024}
}

func (h *HeuristicScorer) Score(_ context.Context, in Input) (Assessment, error) {
	var (
		score   int
		reasons []string
	)

	ext := strings.ToLower(filepath.Ext(in.Filename))
	if _, ok := h.Allowed[ext]; !ok {
		score += 50
		reasons = append(reasons, fmt.Sprintf("unexpected file type %q", ext))
	}
	if len(in.Data) > h.MaxBytes {
		score += 20
		reasons = append(reasons, fmt.Sprintf("size %d exceeds %d bytes", len(in.Data), h.MaxBytes))
	}
	score = min(score, 100)

	analysis := "no issues found"
	if len(reasons) > 0 {
		analysis = strings.Join(reasons, "; ")
	}
	return Assessment{Score: score, Analysis: analysis, Safe: score < SafeBelow}, nil
}
