package protect_test

import (
	"testing"

	"github.com/reactivekit/notify/protect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type pinned struct {
	name string
}

// should balance nested protections of the same object
func TestFastProtectionCounting(t *testing.T) {
	p := protect.NewFast()
	obj := &pinned{name: "a"}

	assert.Same(t, obj, p.Protect(obj))
	p.Protect(obj)
	assert.Equal(t, 2, p.ActiveProtections())

	p.Unprotect(obj)
	assert.Equal(t, 1, p.ActiveProtections())
	p.Unprotect(obj)
	assert.Equal(t, 0, p.ActiveProtections())
}

// should treat nil as a no-op for both calls
func TestFastNilObject(t *testing.T) {
	p := protect.NewFast()

	assert.Nil(t, p.Protect(nil))
	assert.Nil(t, p.Unprotect(nil))
	assert.Equal(t, 0, p.ActiveProtections())
}

// should keep the imbalance observable after an over-unprotect
func TestFastOverUnprotectAccounting(t *testing.T) {
	p := protect.NewFast()
	obj := &pinned{name: "b"}

	p.Protect(obj)
	p.Unprotect(obj)
	p.Unprotect(obj)
	assert.Equal(t, -1, p.ActiveProtections())
}

// should track per-object protection counts
func TestRaisingProtections(t *testing.T) {
	p := protect.NewRaising()
	a, b := &pinned{name: "a"}, &pinned{name: "b"}

	p.Protect(a)
	p.Protect(a)
	p.Protect(b)

	assert.Equal(t, 2, p.Protections(a))
	assert.Equal(t, 1, p.Protections(b))
	assert.Equal(t, 0, p.Protections(&pinned{name: "c"}))
	assert.Equal(t, 3, p.ActiveProtections())
}

// should panic on unprotect without matching protect
func TestRaisingUnbalancedUnprotect(t *testing.T) {
	p := protect.NewRaising()
	obj := &pinned{name: "a"}

	assert.PanicsWithError(t, (&protect.UnprotectionError{Object: obj}).Error(), func() {
		p.Unprotect(obj)
	})
}

// should log unbalanced unprotects and keep running
func TestDebugLogsUnbalancedUnprotect(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	p := protect.NewDebug(zap.New(core))
	obj := &pinned{name: "a"}

	assert.Same(t, obj, p.Unprotect(obj))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "unprotect without matching protect")
}

// should snapshot currently protected objects
func TestDebugProtectedSnapshot(t *testing.T) {
	p := protect.NewDebug(nil)
	a, b := &pinned{name: "a"}, &pinned{name: "b"}

	p.Protect(a)
	p.Protect(b)
	p.Unprotect(b)

	snapshot := p.Protected()
	assert.True(t, snapshot.Contains(a))
	assert.False(t, snapshot.Contains(b))
	assert.Equal(t, 1, snapshot.Cardinality())
}

// should refuse swapping the default while protections are active
func TestSetDefaultGuards(t *testing.T) {
	original := protect.Default()
	defer func() {
		require.NoError(t, protect.SetDefault(original))
	}()

	replacement := protect.NewRaising()
	require.NoError(t, protect.SetDefault(replacement))
	assert.Same(t, protect.Protector(replacement), protect.Default())

	obj := &pinned{name: "a"}
	replacement.Protect(obj)
	assert.Error(t, protect.SetDefault(protect.NewFast()))
	assert.Error(t, protect.SetDefault(nil))

	// Swapping to the protector already in place stays allowed.
	assert.NoError(t, protect.SetDefault(replacement))

	replacement.Unprotect(obj)
	assert.NoError(t, protect.SetDefault(protect.NewFast()))
}
