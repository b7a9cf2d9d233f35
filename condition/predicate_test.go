package condition_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/reactivekit/notify/condition"
	"github.com/reactivekit/notify/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// should evaluate the predicate on explicit updates only
func TestPredicate(t *testing.T) {
	positive := func(v any) bool { return v.(int) > 0 }
	p := condition.NewPredicate(positive, 5)
	count, last := track(p)

	assert.True(t, p.State())
	assert.False(t, p.IsMutable())

	assert.False(t, p.Update(3))
	assert.Equal(t, 0, *count)

	assert.True(t, p.Update(-1))
	assert.False(t, p.State())
	assert.Equal(t, 1, *count)
	assert.False(t, *last)
}

// should reject a nil predicate
func TestPredicateNil(t *testing.T) {
	assert.Panics(t, func() { condition.NewPredicate(nil, 1) })
}

// should track a predicate over a variable's value
func TestOverVariable(t *testing.T) {
	v := value.NewVariable(5)
	c := condition.OverVariable(v, func(x any) bool { return x.(int) > 2 })
	count, _ := track(c)

	assert.True(t, c.State())

	v.Set(3)
	assert.Equal(t, 0, *count)

	v.Set(1)
	assert.False(t, c.State())
	assert.Equal(t, 1, *count)

	v.Set(10)
	assert.True(t, c.State())
	assert.Equal(t, 2, *count)
}

// should compose like any other condition
func TestOverVariableComposes(t *testing.T) {
	v := value.NewVariable("")
	nonEmpty := condition.OverVariable(v, func(x any) bool { return x.(string) != "" })
	enabled := condition.NewBool(true)
	ready := nonEmpty.And(enabled)

	assert.False(t, ready.State())
	v.Set("go")
	assert.True(t, ready.State())
	enabled.SetState(false)
	assert.False(t, ready.State())
}

// should freeze its state when the variable is reclaimed
func TestOverVariableReclaimed(t *testing.T) {
	protector := withRaisingProtector(t)

	c := func() condition.Condition {
		temp := value.NewVariable(7)
		c := condition.OverVariable(temp, func(x any) bool { return x.(int) > 2 })
		_ = c.Changed()
		require.Equal(t, 1, protector.Protections(c))
		return c
	}()
	require.True(t, c.State())

	require.Eventually(t, func() bool {
		runtime.GC()
		return protector.Protections(c) == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.True(t, c.State())
	assert.Equal(t, 0, protector.ActiveProtections())
}
