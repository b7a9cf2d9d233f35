// Package protect keeps otherwise unreferenced objects away from the
// garbage collector.
//
// Some objects need to stay alive without anybody holding a reference to
// them.  Compound conditions are the prime example: their state changes
// because their operands change, yet handlers watching them hold no
// reference.  A Protector pins such objects for as long as they are
// protected.
//
// The library routes all protection through Default.  Swap in Raising or
// Debug near program start to track down protection imbalances.
package protect

import (
	"errors"
	"fmt"
	"sync"
)

// Protector pins objects so the garbage collector cannot reclaim them.
// Protecting the same object several times is legal; it stays pinned until
// unprotected the same number of times.  Protecting nil is a no-op.  Both
// methods return their argument for chaining.
//
// Objects are tracked by Go equality, so a protected value must be
// comparable.  The library itself only ever protects pointers, whose
// identity is their address.
type Protector interface {
	Protect(obj any) any
	Unprotect(obj any) any

	// ActiveProtections returns the total number of outstanding
	// protections across all objects.
	ActiveProtections() int
}

var (
	defaultMu        sync.Mutex
	defaultProtector Protector = NewFast()
)

// Default returns the protector used by the rest of the library.
func Default() Protector {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultProtector
}

// SetDefault replaces the default protector.  The swap is refused while the
// current default has active protections: replacing it mid-flight would
// orphan the pinned objects.
func SetDefault(p Protector) error {
	if p == nil {
		return errors.New("protect: default protector cannot be nil")
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()

	if p == defaultProtector {
		return nil
	}
	if n := defaultProtector.ActiveProtections(); n != 0 {
		return fmt.Errorf("protect: current default protector has %d active protections", n)
	}
	defaultProtector = p
	return nil
}

// UnprotectionError reports an unprotect call without a matching protect.
// Of the bundled protectors only Raising panics with it.
type UnprotectionError struct {
	Object any
}

func (e *UnprotectionError) Error() string {
	return fmt.Sprintf("protect: object %v is not protected", e.Object)
}
