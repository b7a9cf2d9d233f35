// Package weakref provides non-owning references with reclamation hooks.
//
// A Ref observes a heap object without keeping it alive and fires callbacks
// once the garbage collector reclaims it.  It is the mechanism underneath
// weak handler bindings, clean signal parents and condition operands.
package weakref

import (
	"runtime"
	"sync"
	"unsafe"
	"weak"
)

// Ref points to a value without keeping it alive.  Once the garbage
// collector reclaims the value, Value returns nil and the callbacks
// registered with OnReclaim fire exactly once each.
type Ref struct {
	value func() any
	id    uintptr

	mu        sync.Mutex
	reclaimed bool
	callbacks []func()
}

// Of creates a Ref to p.  Callbacks registered with OnReclaim run on the
// runtime's cleanup goroutine some time after p becomes unreachable.
func Of[T any](p *T) *Ref {
	wp := weak.Make(p)
	r := &Ref{
		value: func() any {
			if v := wp.Value(); v != nil {
				return v
			}
			return nil
		},
		id: uintptr(unsafe.Pointer(p)),
	}

	// The cleanup must not keep the Ref alive: once nobody holds it,
	// there is nothing left to notify.
	wr := weak.Make(r)
	runtime.AddCleanup(p, func(_ struct{}) {
		if live := wr.Value(); live != nil {
			live.reclaim()
		}
	}, struct{}{})

	return r
}

// Value returns the referenced value, or nil if it has been reclaimed.
func (r *Ref) Value() any {
	if r == nil {
		return nil
	}
	return r.value()
}

// Alive reports whether the referenced value has not been reclaimed.
func (r *Ref) Alive() bool {
	return r.Value() != nil
}

// ID returns the identity the referenced value had at creation time.  It
// stays usable after reclamation, but the address may be reused by later
// allocations, so it only identifies the value while Alive is true.
func (r *Ref) ID() uintptr {
	if r == nil {
		return 0
	}
	return r.id
}

// OnReclaim registers fn to run once the referenced value is reclaimed.
// If that already happened, fn runs immediately on the calling goroutine.
func (r *Ref) OnReclaim(fn func()) {
	r.mu.Lock()
	if r.reclaimed {
		r.mu.Unlock()
		fn()
		return
	}
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

func (r *Ref) reclaim() {
	r.mu.Lock()
	if r.reclaimed {
		r.mu.Unlock()
		return
	}
	r.reclaimed = true
	callbacks := r.callbacks
	r.callbacks = nil
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
