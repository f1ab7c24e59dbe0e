package usecase

import (
	"sync"

	"github.com/vitos/crypto_breakout_bot/internal/domain"
)

// EngineState holds the running/pause flags shared between the engine
// loop and the feed watchdog. It is the only cross-goroutine mutable
// state, guarded by a mutex.
type EngineState struct {
	mu          sync.Mutex
	running     bool
	pauseReason domain.PauseReason
}

func NewEngineState() *EngineState {
	return &EngineState{running: true}
}

func (s *EngineState) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns both flags atomically.
func (s *EngineState) Snapshot() (bool, domain.PauseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, s.pauseReason
}

// Pause stops entries for the given reason. Returns false when the engine
// was already paused, so repeated staleness does not re-log and a feed
// pause can never override a risk or manual pause.
func (s *EngineState) Pause(reason domain.PauseReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return false
	}
	s.running = false
	s.pauseReason = reason
	return true
}

// Resume restarts the engine only if the current pause was set for the
// expected reason. Feed recovery must not override a human- or
// risk-initiated stop.
func (s *EngineState) Resume(expected domain.PauseReason) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running || s.pauseReason != expected {
		return false
	}
	s.running = true
	s.pauseReason = domain.PauseNone
	return true
}
