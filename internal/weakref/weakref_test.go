package weakref_test

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reactivekit/notify/internal/weakref"
	"github.com/stretchr/testify/assert"
)

type payload struct {
	n int
}

// should resolve the referenced value while it is reachable
func TestRefValueWhileAlive(t *testing.T) {
	p := &payload{n: 42}
	r := weakref.Of(p)

	assert.True(t, r.Alive())
	assert.Same(t, p, r.Value())
	assert.NotZero(t, r.ID())
	runtime.KeepAlive(p)
}

// should return nil and fire callbacks once the value is reclaimed
func TestRefReclamation(t *testing.T) {
	var fired atomic.Int32

	r := func() *weakref.Ref {
		p := &payload{n: 1}
		r := weakref.Of(p)
		r.OnReclaim(func() { fired.Add(1) })
		return r
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return !r.Alive() && fired.Load() == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Nil(t, r.Value())
	assert.NotZero(t, r.ID())
}

// should fire a late-registered callback immediately
func TestRefLateCallback(t *testing.T) {
	r := func() *weakref.Ref {
		return weakref.Of(&payload{n: 2})
	}()

	assert.Eventually(t, func() bool {
		runtime.GC()
		return !r.Alive()
	}, 5*time.Second, 10*time.Millisecond)

	fired := false
	r.OnReclaim(func() { fired = true })
	assert.True(t, fired)
}

// should not fire callbacks while the value stays reachable
func TestRefNoPrematureCallback(t *testing.T) {
	p := &payload{n: 3}
	r := weakref.Of(p)

	fired := false
	r.OnReclaim(func() { fired = true })

	runtime.GC()
	runtime.GC()
	assert.True(t, r.Alive())
	assert.False(t, fired)
	runtime.KeepAlive(p)
}

// should tolerate nil receivers for value queries
func TestNilRef(t *testing.T) {
	var r *weakref.Ref
	assert.Nil(t, r.Value())
	assert.False(t, r.Alive())
	assert.Zero(t, r.ID())
}
