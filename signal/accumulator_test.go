package signal_test

import (
	"testing"

	"github.com/reactivekit/notify/signal"
	"github.com/stretchr/testify/assert"
)

func constant(v any) func(args ...any) any {
	return func(args ...any) any { return v }
}

// should stop at the first truthy handler value
func TestAnyAcceptsShortCircuit(t *testing.T) {
	s := signal.NewAccumulating(signal.AnyAccepts)
	invoked := []string{}

	s.Connect(func(args ...any) any { invoked = append(invoked, "a"); return false })
	s.Connect(func(args ...any) any { invoked = append(invoked, "b"); return 7 })
	s.Connect(func(args ...any) any { invoked = append(invoked, "c"); return true })

	assert.Equal(t, 7, s.Emit())
	assert.Equal(t, []string{"a", "b"}, invoked)
}

// should return false from any-accepts with no handlers
func TestAnyAcceptsEmpty(t *testing.T) {
	s := signal.NewAccumulating(signal.AnyAccepts)
	assert.Equal(t, false, s.Emit())
}

// should stop at the first falsy handler value
func TestAllAcceptShortCircuit(t *testing.T) {
	s := signal.NewAccumulating(signal.AllAccept)
	invoked := []string{}

	s.Connect(func(args ...any) any { invoked = append(invoked, "a"); return 1 })
	s.Connect(func(args ...any) any { invoked = append(invoked, "b"); return "" })
	s.Connect(func(args ...any) any { invoked = append(invoked, "c"); return 2 })

	assert.Equal(t, "", s.Emit())
	assert.Equal(t, []string{"a", "b"}, invoked)
}

// should return true from all-accept with no handlers
func TestAllAcceptEmpty(t *testing.T) {
	s := signal.NewAccumulating(signal.AllAccept)
	assert.Equal(t, true, s.Emit())
}

// should keep the last handler value
func TestLastValue(t *testing.T) {
	s := signal.NewAccumulating(signal.LastValue)

	assert.Nil(t, s.Emit())

	s.Connect(constant("first"))
	s.Connect(constant("last"))
	assert.Equal(t, "last", s.Emit())
}

// should collect every handler value in order
func TestValueList(t *testing.T) {
	s := signal.NewAccumulating(signal.ValueList)

	assert.Equal(t, []any{}, s.Emit())

	s.Connect(constant(1))
	s.Connect(constant("two"))
	s.Connect(constant(nil))
	assert.Equal(t, []any{1, "two", nil}, s.Emit())
}

// should return nil from emissions without an accumulator
func TestNoAccumulator(t *testing.T) {
	s := signal.New()
	s.Connect(constant(42))
	assert.Nil(t, s.Emit())
	assert.Nil(t, s.Accumulator())
}

// should treat zero and empty values as falsy
func TestTruthy(t *testing.T) {
	assert.False(t, signal.Truthy(nil))
	assert.False(t, signal.Truthy(false))
	assert.False(t, signal.Truthy(0))
	assert.False(t, signal.Truthy(0.0))
	assert.False(t, signal.Truthy(""))
	assert.False(t, signal.Truthy([]int{}))
	assert.False(t, signal.Truthy(map[string]int{}))
	assert.False(t, signal.Truthy((*int)(nil)))

	assert.True(t, signal.Truthy(true))
	assert.True(t, signal.Truthy(-1))
	assert.True(t, signal.Truthy("x"))
	assert.True(t, signal.Truthy([]int{0}))
	assert.True(t, signal.Truthy(struct{}{}))
}
