package metrics

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// statsSource serves canned peer stats and counts scrapes.
type statsSource struct {
	mu      sync.Mutex
	stats   []TunnelStats
	err     error
	scrapes int
}

func (s *statsSource) ReadTunnelStats(context.Context) ([]TunnelStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scrapes++
	if s.err != nil {
		return nil, s.err
	}
	return append([]TunnelStats(nil), s.stats...), nil
}
