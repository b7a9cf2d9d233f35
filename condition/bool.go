package condition

import (
	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/signal"
)

// Bool is the all-purpose mutable condition.
type Bool struct {
	stateCore
}

// NewBool creates a mutable condition with the given initial state.
func NewBool(initial bool) *Bool {
	b := &Bool{}
	b.state = initial
	b.init(b, weakref.Of(b))
	return b
}

// IsMutable reports true.
func (b *Bool) IsMutable() bool { return true }

// Set stores the truth of v and reports whether the state changed.
func (b *Bool) Set(v any) bool {
	return b.setState(signal.Truthy(v))
}

// SetState stores state and reports whether it changed.
func (b *Bool) SetState(state bool) bool {
	return b.setState(state)
}
