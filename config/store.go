package config

import (
	"sync"

	"github.com/pkg/errors"
)

// FocalDepthStep is the focal depth change applied per scroll notch.
const FocalDepthStep float32 = 0.5

// minFocalDepth keeps scroll adjustments inside the valid focal depth range.
const minFocalDepth float32 = 0.1

// Store owns the canonical PassConfig shared between input handling and the frame loop.
// Writers go through Update, Toggle or AdjustFocalDepth; readers take a Snapshot once per frame.
type Store struct {
	mu  sync.RWMutex
	cfg PassConfig
}

// NewStore creates a Store seeded with cfg.
//
// Parameters:
//   - cfg: the initial configuration, which must pass Validate
//
// Returns:
//   - *Store: the new store
//   - error: a validation error
func NewStore(cfg PassConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "new config store")
	}
	return &Store{cfg: cfg}, nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() PassConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update applies fn to a copy of the configuration and stores the result if it validates.
// A rejected update leaves the stored configuration untouched.
//
// Parameters:
//   - fn: the mutation to apply
//
// Returns:
//   - error: a validation error wrapping ErrOutOfRange
func (s *Store) Update(fn func(*PassConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Toggle flips an effect and returns its new state.
func (s *Store) Toggle(e Effect) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	on := !s.cfg.Enabled(e)
	s.cfg = s.cfg.WithEffect(e, on)
	return on
}

// AdjustFocalDepth moves the focal depth by notches*FocalDepthStep, never below a small positive floor.
//
// Parameters:
//   - notches: scroll wheel offset, positive moves the focal plane away from the camera
//
// Returns:
//   - float32: the new focal depth
func (s *Store) AdjustFocalDepth(notches float64) float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.cfg.DepthOfField.FocalDepth + float32(notches)*FocalDepthStep
	if d < minFocalDepth {
		d = minFocalDepth
	}
	s.cfg.DepthOfField.FocalDepth = d
	return d
}
