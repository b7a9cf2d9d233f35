// Package value implements observable value holders.
//
// A holder owns a value and a lazily created "changed" signal that is
// emitted with the new value on every real change.  Base carries the
// machinery (lazy signal, freezing, storing, mutual synchronization) and is
// meant to be embedded by concrete holders such as Variable and the
// condition types.
package value

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/signal"
)

// Holder is an observable value.
type Holder interface {
	// Get returns the current value.
	Get() any

	// Changed returns the signal emitted with the new value on every
	// change.  Reading it creates the signal if needed.
	Changed() *signal.Signal

	// IsMutable reports whether the holder's value can be set from
	// outside.
	IsMutable() bool
}

// Mutable is a Holder whose value can be set.
type Mutable interface {
	Holder

	// Set stores a new value and reports whether it differed from the
	// old one.
	Set(v any) bool
}

// SignalRef resolves the stored changed signal; implementations may hold it
// weakly and resolve to nil after reclamation.
type SignalRef interface {
	Signal() *signal.Signal
}

type strongSignalRef struct {
	s *signal.Signal
}

func (r *strongSignalRef) Signal() *signal.Signal { return r.s }

type weakSignalRef struct {
	ref *weakref.Ref
}

func (r *weakSignalRef) Signal() *signal.Signal {
	if v := r.ref.Value(); v != nil {
		return v.(*signal.Signal)
	}
	return nil
}

// WeakSignalRef wraps s without keeping it alive.  onReclaim, if not nil,
// runs once s is reclaimed and receives the returned SignalRef, which the
// owner passes to DropSignal.
func WeakSignalRef(s *signal.Signal, onReclaim func(SignalRef)) SignalRef {
	r := &weakSignalRef{ref: weakref.Of(s)}
	if onReclaim != nil {
		r.ref.OnReclaim(func() { onReclaim(r) })
	}
	return r
}

type freezeState int8

const (
	notFrozen freezeState = iota
	frozenClean
	frozenDirty
)

// Base is the embeddable core of a holder.  Embedders must call Init with
// the outer object before use.
//
// The public contract is single-goroutine; the signal slot alone is
// mutex-guarded because GC-sensitive holders drop it from the runtime's
// cleanup goroutine.
type Base struct {
	owner   Holder
	factory func() (*signal.Signal, SignalRef)

	sigMu sync.Mutex
	sig   SignalRef

	freeze freezeState
}

// Init wires the embedding holder.  The owner's Get is used for freezing
// and storing; its Set (if Mutable) for synchronization.
func (b *Base) Init(owner Holder) {
	if owner == nil {
		panic("value: nil holder")
	}
	b.owner = owner
}

// SetSignalFactory overrides how the changed signal is created.  Holders
// that must not be kept alive by their own signal return a clean signal
// paired with a WeakSignalRef.
func (b *Base) SetSignalFactory(factory func() (*signal.Signal, SignalRef)) {
	b.factory = factory
}

// Changed returns the changed signal, creating it on first use.
func (b *Base) Changed() *signal.Signal {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()

	if b.sig != nil {
		if s := b.sig.Signal(); s != nil {
			return s
		}
	}

	var s *signal.Signal
	if b.factory != nil {
		s, b.sig = b.factory()
	} else {
		s = signal.New()
		b.sig = &strongSignalRef{s: s}
	}
	return s
}

// HasSignal reports whether a changed signal currently exists.
func (b *Base) HasSignal() bool {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	return b.sig != nil && b.sig.Signal() != nil
}

// DropSignal clears the stored signal if ref is the currently stored
// reference, reporting whether it was.  For use by GC-sensitive embedders
// from their signal-reclamation callbacks.
func (b *Base) DropSignal(ref SignalRef) bool {
	b.sigMu.Lock()
	defer b.sigMu.Unlock()
	if b.sig == ref {
		b.sig = nil
		return true
	}
	return false
}

// ValueChanged must be called by the embedder whenever the value actually
// changed; it emits the changed signal unless the holder is frozen.
func (b *Base) ValueChanged(v any) {
	if b.freeze != notFrozen {
		b.freeze = frozenDirty
		return
	}

	b.sigMu.Lock()
	var s *signal.Signal
	if b.sig != nil {
		s = b.sig.Signal()
	}
	b.sigMu.Unlock()

	if s != nil {
		s.Emit(v)
	}
}

// IsFrozen reports whether changes are currently coalesced.
func (b *Base) IsFrozen() bool {
	return b.freeze != notFrozen
}

// WithChangesFrozen runs body with change notifications suspended.  If the
// value changed while frozen and ends up different from the pre-freeze
// value, the changed signal is emitted exactly once afterwards.  Nested
// calls coalesce into the outermost one.
func (b *Base) WithChangesFrozen(body func()) {
	if b.freeze != notFrozen {
		body()
		return
	}

	original := b.owner.Get()
	b.freeze = frozenClean
	defer func() {
		dirty := b.freeze == frozenDirty
		b.freeze = notFrozen
		if dirty {
			if now := b.owner.Get(); !reflect.DeepEqual(now, original) {
				b.ValueChanged(now)
			}
		}
	}()

	body()
}

// Store calls fn with the current value right away and connects it to the
// changed signal, so fn always knows the up-to-date value.
func (b *Base) Store(fn bind.Func, args ...any) {
	b.StoreBinding(bind.New(fn, args...))
}

// StoreBinding is Store for a prebuilt binding.
func (b *Base) StoreBinding(h bind.Caller) {
	h.Call(b.owner.Get())
	b.Changed().ConnectBinding(h)
}

// StoreSafe is Store unless an equal handler is already connected; it
// reports whether this call connected it.
func (b *Base) StoreSafe(fn bind.Func, args ...any) bool {
	return b.StoreSafeBinding(bind.New(fn, args...))
}

// StoreSafeBinding is StoreSafe for a prebuilt binding.
func (b *Base) StoreSafeBinding(h bind.Caller) bool {
	if b.Changed().IsConnectedBinding(h) {
		return false
	}
	b.StoreBinding(h)
	return true
}

// StoreScoped stores fn and returns the matching disconnect.
func (b *Base) StoreScoped(fn bind.Func, args ...any) func() {
	h := bind.New(fn, args...)
	b.StoreBinding(h)
	return func() { b.Changed().DisconnectBinding(h) }
}

// Synchronize keeps this holder's value equal to other's.  Other's current
// value is stored into this holder first; afterwards each holder's setter
// follows the other's changed signal.  With a non-nil mediator, values
// flowing from other are passed through its forward transformation and
// values flowing back through its back transformation.
//
// Both holders must be mutable and distinct; violations panic.
func (b *Base) Synchronize(other Mutable, med Mediator) {
	self := b.mutableOwner()
	if other == nil {
		panic("value: cannot synchronize with nil")
	}
	if Holder(other) == b.owner {
		panic("value: cannot synchronize a holder with itself")
	}

	forward, back := syncBindings(self, other, med)

	// Order matters: adopt other's value first, then cross-connect.
	storeInto(other, forward)
	b.Changed().ConnectBinding(back)
}

// SynchronizeSafe is Synchronize built on safe connections, so repeating it
// does not stack duplicate links.
func (b *Base) SynchronizeSafe(other Mutable, med Mediator) {
	self := b.mutableOwner()
	if other == nil {
		panic("value: cannot synchronize with nil")
	}
	if Holder(other) == b.owner {
		panic("value: cannot synchronize a holder with itself")
	}

	forward, back := syncBindings(self, other, med)

	if !other.Changed().IsConnectedBinding(forward) {
		storeInto(other, forward)
	}
	b.Changed().ConnectSafeBinding(back)
}

// Desynchronize undoes one matching Synchronize (same or equal mediator),
// reporting whether the link existed.  Values stop following each other; no
// value is changed now.
func (b *Base) Desynchronize(other Mutable, med Mediator) bool {
	return b.desynchronize(other, med, false)
}

// DesynchronizeFully removes all matching synchronization links at once.
func (b *Base) DesynchronizeFully(other Mutable, med Mediator) bool {
	return b.desynchronize(other, med, true)
}

func (b *Base) desynchronize(other Mutable, med Mediator, all bool) bool {
	if other == nil || !b.HasSignal() {
		return false
	}
	self, ok := b.owner.(Mutable)
	if !ok {
		return false
	}

	forward, back := syncBindings(self, other, med)

	if !other.Changed().IsConnectedBinding(forward) || !b.Changed().IsConnectedBinding(back) {
		return false
	}
	if all {
		other.Changed().DisconnectAllBinding(forward)
		b.Changed().DisconnectAllBinding(back)
	} else {
		other.Changed().DisconnectBinding(forward)
		b.Changed().DisconnectBinding(back)
	}
	return true
}

// SynchronizeScoped synchronizes with other and returns the matching
// desynchronize.
func (b *Base) SynchronizeScoped(other Mutable, med Mediator) func() {
	b.Synchronize(other, med)
	return func() { b.Desynchronize(other, med) }
}

func (b *Base) mutableOwner() Mutable {
	self, ok := b.owner.(Mutable)
	if !ok || !b.owner.IsMutable() {
		panic(fmt.Sprintf("value: %T is not mutable", b.owner))
	}
	return self
}

// syncBindings builds the pair of setter bindings a synchronization link
// consists of.  They are rebuilt structurally equal on every call, which is
// what lets Desynchronize find and remove an earlier link.
func syncBindings(self, other Mutable, med Mediator) (forward, back bind.Caller) {
	if med == nil {
		return bind.Target(self, applySet), bind.Target(other, applySet)
	}
	return bind.Target(self, applyForward, med), bind.Target(other, applyBack, med)
}

func storeInto(other Mutable, forward bind.Caller) {
	forward.Call(other.Get())
	other.Changed().ConnectBinding(forward)
}

func applySet(target any, args ...any) any {
	return target.(Mutable).Set(args[len(args)-1])
}

func applyForward(target any, args ...any) any {
	med := args[0].(Mediator)
	return target.(Mutable).Set(med.ForwardValue(args[len(args)-1]))
}

func applyBack(target any, args ...any) any {
	med := args[0].(Mediator)
	return target.(Mutable).Set(med.BackValue(args[len(args)-1]))
}
