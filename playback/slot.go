package playback

import "sync"

// Slot holds the single active playback of a process. Loading a playback into
// a slot takes over the source layer and the paused recorder of the one it
// replaces.
type Slot struct {
	mu      sync.Mutex
	current *Playback
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// Current returns the active playback, or nil.
func (s *Slot) Current() *Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Active reports whether a playback currently owns the source layer.
func (s *Slot) Active() bool {
	return s.Current() != nil
}

// install makes p the active playback and returns the one it replaced.
func (s *Slot) install(p *Playback) *Playback {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = p
	if prev == p {
		return nil
	}
	return prev
}

func (s *Slot) release(p *Playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == p {
		s.current = nil
	}
}
