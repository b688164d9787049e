// Package governance tracks the ledger-wide lifecycle: Open (identity
// administration only) -> Sealed (trading enabled), with an orthogonal
// read-only flag that blocks every mutating engine call while set.
package governance

import (
	"sync"

	"go.uber.org/zap"

	"github.com/oberonmarkets/comex-ledger/pkg/errors"
)

// State is the governance toggle set consulted by the engine.
type State struct {
	mu       sync.RWMutex
	logger   *zap.Logger
	sealed   bool
	readOnly bool
}

// NewState starts in Open with read-only cleared.
func NewState(logger *zap.Logger) *State {
	return &State{logger: logger}
}

// Seal enables trading. Sealing twice is a no-op.
func (s *State) Seal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		s.sealed = true
		s.logger.Info("ledger sealed, trading enabled")
	}
}

// SetReadOnly toggles the read-only gate. It is only settable once the
// ledger is sealed.
func (s *State) SetReadOnly(v bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sealed {
		return errors.New(errors.KindRestricted)
	}
	s.readOnly = v
	s.logger.Info("read-only flag changed", zap.Bool("read_only", v))
	return nil
}

// IsSealed reports whether trading is enabled.
func (s *State) IsSealed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealed
}

// IsReadOnly reports whether mutations are blocked.
func (s *State) IsReadOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readOnly
}
