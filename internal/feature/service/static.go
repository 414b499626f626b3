package service

import (
	"context"
	"sync"

	"github.com/denhac/memberbridge/internal/feature/domain"
)

// Static is an in-memory flag set, used by tests and by cmd/replay where no
// reactor reads flags.
type Static struct {
	mu    sync.RWMutex
	flags map[domain.Flag]bool
}

func NewStatic(flags map[domain.Flag]bool) *Static {
	s := &Static{flags: make(map[domain.Flag]bool, len(flags))}
	for k, v := range flags {
		s.flags[k] = v
	}
	return s
}

func (s *Static) IsEnabled(flag domain.Flag) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[flag]
}

func (s *Static) Snapshot() map[domain.Flag]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotOf(s.flags)
}

func (s *Static) Set(_ context.Context, flag domain.Flag, enabled bool) error {
	if !flag.Known() {
		return domain.ErrUnknownFlag
	}
	s.mu.Lock()
	s.flags[flag] = enabled
	s.mu.Unlock()
	return nil
}

func snapshotOf(flags map[domain.Flag]bool) map[domain.Flag]bool {
	out := make(map[domain.Flag]bool, len(domain.Flags()))
	for _, flag := range domain.Flags() {
		out[flag] = flags[flag]
	}
	return out
}
