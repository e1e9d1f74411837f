package profile

import (
	"errors"
	"sync/atomic"
)

// ErrNotLoaded reports a holder with no snapshot.
var ErrNotLoaded = errors.New("workflow profile not loaded")

// Holder publishes the current profile snapshot. Readers take a snapshot once
// per operation and keep using it even if a reload swaps in a newer one.
type Holder struct {
	current atomic.Pointer[Profile]
}

// NewHolder returns a holder publishing p, which may be nil.
func NewHolder(p *Profile) *Holder {
	h := &Holder{}
	if p != nil {
		h.current.Store(p)
	}
	return h
}

// Snapshot returns the current profile or ErrNotLoaded.
func (h *Holder) Snapshot() (*Profile, error) {
	p := h.current.Load()
	if p == nil {
		return nil, ErrNotLoaded
	}
	return p, nil
}

// Swap publishes p and returns the previous snapshot.
func (h *Holder) Swap(p *Profile) *Profile {
	return h.current.Swap(p)
}

// Reload loads path and publishes it. The current snapshot is kept when the
// new document fails to load.
func (h *Holder) Reload(path string) (*Profile, error) {
	p, err := Load(path)
	if err != nil {
		return nil, err
	}
	h.current.Store(p)
	return p, nil
}
