package signal_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/protect"
	"github.com/reactivekit/notify/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubParent drives parent liveness by hand, standing in for a weakly
// referenced notification source.
type stubParent struct {
	dead      bool
	callbacks []func()
}

func (p *stubParent) Value() any {
	if p.dead {
		return nil
	}
	return p
}

func (p *stubParent) Alive() bool { return !p.dead }

func (p *stubParent) OnReclaim(fn func()) {
	p.callbacks = append(p.callbacks, fn)
}

func (p *stubParent) die() {
	p.dead = true
	for _, fn := range p.callbacks {
		fn()
	}
}

func withRaisingProtector(t *testing.T) *protect.Raising {
	t.Helper()
	original := protect.Default()
	p := protect.NewRaising()
	require.NoError(t, protect.SetDefault(p))
	t.Cleanup(func() {
		require.NoError(t, protect.SetDefault(original))
	})
	return p
}

// should pin itself exactly while it has handlers and a live parent
func TestCleanSignalSelfProtection(t *testing.T) {
	protector := withRaisingProtector(t)
	parent := &stubParent{}
	s := signal.NewClean(parent, nil)

	fn := func(args ...any) any { return nil }

	assert.Equal(t, 0, protector.Protections(s))

	s.Connect(fn)
	assert.Equal(t, 1, protector.Protections(s))
	s.Connect(fn)
	assert.Equal(t, 1, protector.Protections(s))

	s.Disconnect(fn)
	assert.Equal(t, 1, protector.Protections(s))
	s.Disconnect(fn)
	assert.Equal(t, 0, protector.Protections(s))
	assert.Equal(t, 0, protector.ActiveProtections())
}

// should not pin itself without a parent
func TestCleanSignalNoParentNoProtection(t *testing.T) {
	protector := withRaisingProtector(t)
	s := signal.NewClean(nil, nil)

	s.Connect(func(args ...any) any { return nil })
	assert.Equal(t, 0, protector.Protections(s))
	assert.Equal(t, 0, protector.ActiveProtections())
}

// should release protection when the parent dies
func TestCleanSignalOrphanOnParentDeath(t *testing.T) {
	protector := withRaisingProtector(t)
	parent := &stubParent{}
	s := signal.NewClean(parent, nil)
	fn := func(args ...any) any { return nil }

	s.Connect(fn)
	require.Equal(t, 1, protector.Protections(s))

	parent.die()
	assert.Equal(t, 0, protector.Protections(s))

	// Disconnecting afterwards must not unbalance the accounting.
	s.Disconnect(fn)
	assert.Equal(t, 0, protector.ActiveProtections())
}

// should release protection on explicit orphaning
func TestCleanSignalOrphan(t *testing.T) {
	protector := withRaisingProtector(t)
	parent := &stubParent{}
	s := signal.NewClean(parent, nil)

	s.Connect(func(args ...any) any { return nil })
	require.Equal(t, 1, protector.Protections(s))

	s.Orphan()
	assert.Equal(t, 0, protector.Protections(s))
}

// should drop reclaimed weak handlers without waiting for an emission
func TestCleanSignalEagerCollection(t *testing.T) {
	protector := withRaisingProtector(t)
	parent := &stubParent{}
	s := signal.NewClean(parent, nil)

	func() {
		target := &recorder{}
		h, err := bind.Weak(target, (*recorder).record)
		require.NoError(t, err)
		s.ConnectBinding(h)
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		return !s.HasHandlers()
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, protector.Protections(s))
	assert.Equal(t, 0, protector.ActiveProtections())
}

// should sweep reclaimed weak handlers lazily on plain signals
func TestPlainSignalLazySweep(t *testing.T) {
	s := signal.New()
	calls := 0

	func() {
		target := &recorder{}
		h, err := bind.Weak(target, (*recorder).record)
		require.NoError(t, err)
		s.ConnectBinding(h)
	}()
	s.Connect(func(args ...any) any { calls++; return nil })

	require.Eventually(t, func() bool {
		runtime.GC()
		return s.CountHandlers() == 1
	}, 5*time.Second, 10*time.Millisecond)

	s.Emit()
	assert.Equal(t, 1, calls)
	s.CollectGarbage()
	assert.Equal(t, 1, s.CountHandlers())
}
