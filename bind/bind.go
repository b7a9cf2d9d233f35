// Package bind represents signal handlers as first-class values with
// structural equality.
//
// A binding couples a callable with an optional target object and a list of
// bound arguments that are prepended to call-time arguments.  Two bindings
// are equal when they wrap the same function, the same target and equal
// bound arguments; this is what lets a signal disconnect a handler given a
// freshly built equivalent binding.  Weak flavours reference their target
// through the garbage collector and go inert once it is reclaimed.
package bind

import (
	"encoding/binary"
	"errors"
	"fmt"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Func is the plain handler shape: bound arguments first, then the
// emission arguments.
type Func func(args ...any) any

// TargetFunc is the handler shape for Target bindings; the live target is
// supplied as the first argument.
type TargetFunc func(target any, args ...any) any

// Caller is the handler representation the signal engine works with.  All
// implementations live in this package.
type Caller interface {
	// Call invokes the handler with bound arguments prepended to args.
	Call(args ...any) any

	// Alive reports whether the handler can still be invoked.  Only weak
	// bindings ever return false.
	Alive() bool

	// EqualTo reports structural equality with another binding.
	EqualTo(other Caller) bool

	// Hash returns a hash consistent with EqualTo.
	Hash() uint64

	identity() identity
}

var (
	// ErrNilTarget is returned when constructing a targeted binding
	// without a target.
	ErrNilTarget = errors.New("bind: nil binding target")

	// ErrCannotWeakReference is returned when the runtime refuses to
	// create a weak pointer to the target.
	ErrCannotWeakReference = errors.New("bind: target cannot be weakly referenced")

	// ErrGarbageCollected is the panic value of a raising weak binding
	// invoked after its target was reclaimed.
	ErrGarbageCollected = errors.New("bind: binding target was garbage collected")
)

// identity captures the fields equality is defined over.  A reclaimed
// target's address may be reused by a later allocation, so liveness is part
// of the identity: a dead binding never equals a live one.
type identity struct {
	fn     uintptr
	target uintptr
	alive  bool
	args   []any
}

func (a identity) equal(o identity) bool {
	return a.fn == o.fn &&
		a.target == o.target &&
		a.alive == o.alive &&
		reflect.DeepEqual(a.args, o.args)
}

// Binding is a strong handler binding.  The zero value is not usable; use
// New, Method or Target.
type Binding struct {
	fn       Func
	invoke   func(target any, args []any) any
	fnID     uintptr
	target   any
	targetID uintptr
	args     []any

	// set for weak flavours
	ref       targetRef
	deadPanic bool

	hash   uint64
	hashed bool
}

type targetRef interface {
	Value() any
	Alive() bool
	ID() uintptr
}

// New binds fn with args prepended on every call.
//
// Function identity is the code pointer: two closures created from the same
// function literal compare equal.  Distinguish closure instances with bound
// arguments or use Method with distinct targets.
func New(fn Func, args ...any) *Binding {
	if fn == nil {
		panic("bind: nil handler function")
	}
	return &Binding{
		fn:   fn,
		fnID: reflect.ValueOf(fn).Pointer(),
		args: cloneArgs(args),
	}
}

// Method binds fn to target, holding it strongly.  fn receives the target
// first, then bound and call-time arguments.
func Method[T any](target *T, fn func(*T, ...any) any, args ...any) *Binding {
	if target == nil {
		panic("bind: nil binding target")
	}
	if fn == nil {
		panic("bind: nil handler function")
	}
	return &Binding{
		invoke: func(obj any, callArgs []any) any {
			return fn(obj.(*T), callArgs...)
		},
		fnID:     reflect.ValueOf(fn).Pointer(),
		target:   target,
		targetID: reflect.ValueOf(target).Pointer(),
		args:     cloneArgs(args),
	}
}

// Target binds fn to an interface-typed target, holding it strongly.  The
// target's dynamic type must be a pointer.
func Target(target any, fn TargetFunc, args ...any) *Binding {
	if target == nil {
		panic("bind: nil binding target")
	}
	if fn == nil {
		panic("bind: nil handler function")
	}
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer {
		panic(fmt.Sprintf("bind: target must be a pointer, got %T", target))
	}
	return &Binding{
		invoke: func(obj any, callArgs []any) any {
			return fn(obj, callArgs...)
		},
		fnID:     reflect.ValueOf(fn).Pointer(),
		target:   target,
		targetID: v.Pointer(),
		args:     cloneArgs(args),
	}
}

// Call invokes the handler.  For weak bindings with a reclaimed target this
// is a no-op returning nil, unless the binding is raising.
func (b *Binding) Call(args ...any) any {
	full := b.merge(args)
	if b.ref != nil {
		target := b.ref.Value()
		if target == nil {
			if b.deadPanic {
				panic(ErrGarbageCollected)
			}
			return nil
		}
		return b.invoke(target, full)
	}
	if b.invoke != nil {
		return b.invoke(b.target, full)
	}
	return b.fn(full...)
}

// Alive reports whether the handler can still be invoked.
func (b *Binding) Alive() bool {
	return b.ref == nil || b.ref.Alive()
}

// EqualTo reports structural equality: same function, same target, equal
// bound arguments and matching liveness.
func (b *Binding) EqualTo(other Caller) bool {
	if other == nil {
		return false
	}
	return b.identity().equal(other.identity())
}

// Hash returns a hash consistent with EqualTo.  It is computed lazily and
// cached; liveness is deliberately not part of it.
func (b *Binding) Hash() uint64 {
	if !b.hashed {
		d := xxhash.New()
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(b.fnID))
		d.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], uint64(b.targetID))
		d.Write(buf[:])
		for _, a := range b.args {
			fmt.Fprintf(d, "/%v", a)
		}
		b.hash = d.Sum64()
		b.hashed = true
	}
	return b.hash
}

func (b *Binding) identity() identity {
	return identity{
		fn:     b.fnID,
		target: b.targetID,
		alive:  b.Alive(),
		args:   b.args,
	}
}

func (b *Binding) merge(args []any) []any {
	if len(args) == 0 {
		return b.args
	}
	if len(b.args) == 0 {
		return args
	}
	full := make([]any, 0, len(b.args)+len(args))
	full = append(full, b.args...)
	return append(full, args...)
}

func cloneArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	cloned := make([]any, len(args))
	copy(cloned, args)
	return cloned
}
