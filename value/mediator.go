package value

import (
	"reflect"

	"github.com/reactivekit/notify/signal"
)

// Mediator transforms values crossing a synchronization link.  ForwardValue
// maps the other holder's values into this holder; BackValue maps them back.
// For a faithful round trip BackValue should invert ForwardValue.
//
// Desynchronize finds a mediated link through binding equality, which
// compares mediators by pointer.  Keep the mediator instance around if you
// intend to undo the link later.
type Mediator interface {
	ForwardValue(v any) any
	BackValue(v any) any

	// Reverse returns a mediator with forward and back swapped.
	Reverse() Mediator
}

type identityMediator struct{}

func (m *identityMediator) ForwardValue(v any) any { return v }
func (m *identityMediator) BackValue(v any) any    { return v }
func (m *identityMediator) Reverse() Mediator      { return m }

// Identity returns a mediator that passes values through unchanged.
func Identity() Mediator { return &identityMediator{} }

type booleanMediator struct {
	trueValue  any
	falseValue any
	fallback   func(any) bool
}

func (m *booleanMediator) ForwardValue(v any) any {
	switch {
	case reflect.DeepEqual(v, m.trueValue):
		return true
	case reflect.DeepEqual(v, m.falseValue):
		return false
	default:
		return m.fallback(v)
	}
}

func (m *booleanMediator) BackValue(v any) any {
	if signal.Truthy(v) {
		return m.trueValue
	}
	return m.falseValue
}

func (m *booleanMediator) Reverse() Mediator {
	return &reverseMediator{inner: m}
}

// Boolean returns a mediator that maps trueValue and falseValue to true and
// false; other values go through fallback (truthiness when nil).  Backwards,
// truthy values become trueValue and falsy ones falseValue.
func Boolean(trueValue, falseValue any, fallback func(any) bool) Mediator {
	if fallback == nil {
		fallback = signal.Truthy
	}
	return &booleanMediator{
		trueValue:  trueValue,
		falseValue: falseValue,
		fallback:   fallback,
	}
}

type functionMediator struct {
	forward func(any) any
	back    func(any) any
}

func (m *functionMediator) ForwardValue(v any) any { return m.forward(v) }
func (m *functionMediator) BackValue(v any) any    { return m.back(v) }

func (m *functionMediator) Reverse() Mediator {
	return &reverseMediator{inner: m}
}

// Function builds a mediator out of two plain functions.
func Function(forward, back func(any) any) Mediator {
	if forward == nil || back == nil {
		panic("value: nil mediator function")
	}
	return &functionMediator{forward: forward, back: back}
}

type reverseMediator struct {
	inner Mediator
}

func (m *reverseMediator) ForwardValue(v any) any { return m.inner.BackValue(v) }
func (m *reverseMediator) BackValue(v any) any    { return m.inner.ForwardValue(v) }
func (m *reverseMediator) Reverse() Mediator      { return m.inner }
