package session

import (
	"sync/atomic"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
)

// Buffer holds the most recent window. Set replaces it with a single
// pointer swap, so concurrent readers see either the old or the new window.
// Windows handed to Set must not be mutated afterwards.
type Buffer struct {
	current atomic.Pointer[flow.Window]
}

// Set replaces the current window.
func (b *Buffer) Set(w flow.Window) {
	b.current.Store(&w)
}

// Clear empties the buffer.
func (b *Buffer) Clear() {
	b.current.Store(nil)
}

// Get returns the current window, or an empty window after Clear.
func (b *Buffer) Get() flow.Window {
	if w := b.current.Load(); w != nil {
		return *w
	}
	return flow.Window{}
}
