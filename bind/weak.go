package bind

import (
	"reflect"

	"github.com/reactivekit/notify/internal/weakref"
)

// WeakBinding references its target through the garbage collector.  It does
// not keep the target alive; once the target is reclaimed the binding goes
// inert: Alive returns false and Call is a harmless no-op returning nil.
type WeakBinding struct {
	Binding
}

// Weak binds fn to target without keeping target alive.
func Weak[T any](target *T, fn func(*T, ...any) any, args ...any) (*WeakBinding, error) {
	if fn == nil {
		panic("bind: nil handler function")
	}
	core, err := weakCore(target, fn, args)
	if err != nil {
		return nil, err
	}
	return &WeakBinding{Binding: core}, nil
}

// OnReclaim registers fn to run once the target is reclaimed.  The callback
// fires exactly once, on the runtime's cleanup goroutine; if the target is
// already gone it runs immediately.
func (b *WeakBinding) OnReclaim(fn func()) {
	b.ref.(*weakref.Ref).OnReclaim(fn)
}

// RaisingWeakBinding is a WeakBinding that panics with ErrGarbageCollected
// when called after its target was reclaimed, instead of silently doing
// nothing.  Useful when a call to a dead handler indicates a logic error.
type RaisingWeakBinding struct {
	WeakBinding
}

// RaisingWeak binds fn to target without keeping target alive; calls after
// reclamation panic.
func RaisingWeak[T any](target *T, fn func(*T, ...any) any, args ...any) (*RaisingWeakBinding, error) {
	if fn == nil {
		panic("bind: nil handler function")
	}
	core, err := weakCore(target, fn, args)
	if err != nil {
		return nil, err
	}
	core.deadPanic = true
	return &RaisingWeakBinding{WeakBinding: WeakBinding{Binding: core}}, nil
}

func weakCore[T any](target *T, fn func(*T, ...any) any, args []any) (Binding, error) {
	if target == nil {
		return Binding{}, ErrNilTarget
	}

	ref, err := makeRef(target)
	if err != nil {
		return Binding{}, err
	}

	return Binding{
		invoke: func(obj any, callArgs []any) any {
			return fn(obj.(*T), callArgs...)
		},
		fnID:     reflect.ValueOf(fn).Pointer(),
		targetID: ref.ID(),
		args:     cloneArgs(args),
		ref:      ref,
	}, nil
}

// makeRef converts the runtime's refusal to weakly reference a pointer into
// an error instead of a panic.
func makeRef[T any](target *T) (ref *weakref.Ref, err error) {
	defer func() {
		if recover() != nil {
			ref, err = nil, ErrCannotWeakReference
		}
	}()
	return weakref.Of(target), nil
}
