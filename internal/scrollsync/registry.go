package scrollsync

import "go-live-preview/internal/store"

// Key identifies a block. Block IDs are only unique within a page.
type Key struct {
	Page int
	ID   string
}

// Registry maps blocks to whatever handle a render surface keeps for them.
// It is a lookup aid only: a handle is returned only while the block still
// exists in the store passed to Lookup.
type Registry[H any] struct {
	handles map[Key]H
}

func NewRegistry[H any]() *Registry[H] {
	return &Registry[H]{handles: make(map[Key]H)}
}

func (r *Registry[H]) Register(k Key, h H) {
	r.handles[k] = h
}

// Lookup returns the handle for k if the block is still in st.
func (r *Registry[H]) Lookup(st store.Store, k Key) (H, bool) {
	var zero H
	h, ok := r.handles[k]
	if !ok {
		return zero, false
	}
	if _, exists := st.Block(k.Page, k.ID); !exists {
		return zero, false
	}
	return h, true
}

// Retain drops every handle not in keep.
func (r *Registry[H]) Retain(keep map[Key]bool) {
	for k := range r.handles {
		if !keep[k] {
			delete(r.handles, k)
		}
	}
}

// Reset drops all handles.
func (r *Registry[H]) Reset() {
	r.handles = make(map[Key]H)
}

func (r *Registry[H]) Len() int {
	return len(r.handles)
}
