package config

import "sync/atomic"

// Holder publishes the current settings to concurrent readers.
type Holder struct {
	current atomic.Pointer[Settings]
}

// NewHolder creates a holder initialised with s.
func NewHolder(s Settings) *Holder {
	h := &Holder{}
	h.Store(s)
	return h
}

// Current returns a copy of the current settings.
func (h *Holder) Current() Settings {
	return *h.current.Load()
}

// Store replaces the current settings.
func (h *Holder) Store(s Settings) {
	h.current.Store(&s)
}
