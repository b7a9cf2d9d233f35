package condition_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/reactivekit/notify/condition"
	"github.com/reactivekit/notify/protect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

// should freeze a reclaimed operand at its last known state
func TestCompoundFreezesDeadOperand(t *testing.T) {
	protector := withRaisingProtector(t)
	keep := condition.NewBool(false)

	c := func() condition.Condition {
		temp := condition.NewBool(true)
		c := keep.Or(temp)
		_ = c.Changed()
		require.Equal(t, 1, protector.Protections(c))
		return c
	}()
	require.True(t, c.State())

	require.Eventually(t, func() bool {
		runtime.GC()
		return protector.Protections(c) == 0
	}, 5*time.Second, 10*time.Millisecond)

	// The dead operand contributes true forever now.
	assert.True(t, c.State())
	keep.SetState(true)
	keep.SetState(false)
	assert.True(t, c.State())

	assert.Equal(t, 0, protector.ActiveProtections())
}

// should keep a compound alive through its protection while it is in use
func TestCompoundSurvivesWithoutStrongReferences(t *testing.T) {
	a := condition.NewBool(false)
	b := condition.NewBool(false)

	// No strong reference to the intermediate conjunction is kept, yet the
	// chain must keep propagating.
	chain := a.And(b).Not()
	count, _ := track(chain)

	for range 3 {
		runtime.GC()
	}

	assert.True(t, chain.State())
	a.SetState(true)
	b.SetState(true)
	assert.False(t, chain.State())
	assert.Equal(t, 1, *count)
}

// should freeze a negation's operand state when the operand dies
func TestNotFreezesDeadOperand(t *testing.T) {
	protector := withRaisingProtector(t)

	n := func() condition.Condition {
		temp := condition.NewBool(false)
		n := temp.Not()
		_ = n.Changed()
		require.Equal(t, 1, protector.Protections(n))
		return n
	}()
	require.True(t, n.State())

	require.Eventually(t, func() bool {
		runtime.GC()
		return protector.Protections(n) == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, n.State())
	assert.Equal(t, 0, protector.ActiveProtections())
}
