// Package condition implements trackable boolean conditions.
//
// A condition is a value holder whose value is always a bool.  Conditions
// compose: Not, And, Or, Xor and IfElse build compound conditions whose
// state follows their operands and whose changed signal fires on every real
// transition.  Compound conditions reference their operands weakly; a
// reclaimed operand is replaced with a constant carrying its last known
// state, so the compound's state never changes from garbage collection
// alone.
//
// Compound conditions also look after their own lifetime.  While a
// compound's changed signal exists and at least one operand is still
// referenced weakly, the compound protects itself with the default
// protector, since nothing else may be keeping it alive.  The protection is
// dropped as soon as the signal is reclaimed or the last weak operand dies.
package condition

import (
	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/value"
)

// Condition is a trackable boolean.  The implementation set is closed;
// mutable entry points are NewBool, NewPredicate, NewWatcher and
// OverVariable.
type Condition interface {
	value.Holder

	// State returns the condition's boolean state; Get returns the same
	// value as an any.
	State() bool

	// Not returns a condition whose state is always the negation of this
	// one's.
	Not() Condition

	// And returns a condition that is true while both conditions are.
	And(other Condition) Condition

	// Or returns a condition that is true while either condition is.
	Or(other Condition) Condition

	// Xor returns a condition that is true while exactly one of the two
	// conditions is.
	Xor(other Condition) Condition

	// IfElse returns a condition whose state is then's while this
	// condition is true and otherwise's while it is false.
	IfElse(then, otherwise Condition) Condition

	// handle identifies the condition to the reclamation machinery.
	handle() *weakref.Ref
}

// TRUE and FALSE are the constant conditions.  Compositions fold them away:
// no compound node is ever built over a constant.
var (
	TRUE  Condition = newConstant(true)
	FALSE Condition = newConstant(false)
)

// toConstant returns the constant condition with the given state.
func toConstant(state bool) Condition {
	if state {
		return TRUE
	}
	return FALSE
}

// Not returns the negation of c, folding constants and unwrapping double
// negation.
func Not(c Condition) Condition {
	requireCondition(c)
	switch c {
	case TRUE:
		return FALSE
	case FALSE:
		return TRUE
	}
	if n, ok := c.(*notCondition); ok {
		return n.operand()
	}
	return newNot(c)
}

// And returns the conjunction of a and b.  A constant operand folds: TRUE
// yields the other operand, FALSE yields FALSE.
func And(a, b Condition) Condition {
	requireCondition(a)
	requireCondition(b)
	switch {
	case a == TRUE:
		return b
	case a == FALSE:
		return FALSE
	case b == TRUE:
		return a
	case b == FALSE:
		return FALSE
	}
	return newBinary(andTable, a, b)
}

// Or returns the disjunction of a and b.  A constant operand folds: FALSE
// yields the other operand, TRUE yields TRUE.
func Or(a, b Condition) Condition {
	requireCondition(a)
	requireCondition(b)
	switch {
	case a == TRUE:
		return TRUE
	case a == FALSE:
		return b
	case b == TRUE:
		return TRUE
	case b == FALSE:
		return a
	}
	return newBinary(orTable, a, b)
}

// Xor returns the exclusive disjunction of a and b.  A TRUE operand folds
// to the negation of the other, a FALSE one to the other itself; two
// negations fold to the exclusive disjunction of their operands.
func Xor(a, b Condition) Condition {
	requireCondition(a)
	requireCondition(b)
	switch {
	case a == TRUE:
		return Not(b)
	case a == FALSE:
		return b
	case b == TRUE:
		return Not(a)
	case b == FALSE:
		return a
	}
	na, aNot := a.(*notCondition)
	nb, bNot := b.(*notCondition)
	if aNot && bNot {
		return Xor(na.operand(), nb.operand())
	}
	return newBinary(xorTable, a, b)
}

// IfElse returns a condition whose state is then's while cond is true and
// otherwise's while it is false.  A constant cond picks a branch, equal
// branches fold to the branch, a negated cond swaps the branches.
func IfElse(cond, then, otherwise Condition) Condition {
	requireCondition(cond)
	requireCondition(then)
	requireCondition(otherwise)
	if then == otherwise {
		return then
	}
	switch cond {
	case TRUE:
		return then
	case FALSE:
		return otherwise
	}
	if n, ok := cond.(*notCondition); ok {
		return IfElse(n.operand(), otherwise, then)
	}
	return newIfElse(cond, then, otherwise)
}

func requireCondition(c Condition) {
	if c == nil {
		panic("condition: nil condition")
	}
}

// core is embedded by every condition implementation.  It carries the value
// holder machinery, the outer condition for combinator dispatch and the
// reclamation handle other conditions watch.
type core struct {
	value.Base
	self Condition
	ref  *weakref.Ref
}

func (c *core) init(self Condition, ref *weakref.Ref) {
	c.self = self
	c.ref = ref
	c.Base.Init(self)
}

func (c *core) handle() *weakref.Ref { return c.ref }

func (c *core) IsMutable() bool { return false }

func (c *core) Not() Condition { return Not(c.self) }

func (c *core) And(other Condition) Condition { return And(c.self, other) }

func (c *core) Or(other Condition) Condition { return Or(c.self, other) }

func (c *core) Xor(other Condition) Condition { return Xor(c.self, other) }

func (c *core) IfElse(then, otherwise Condition) Condition {
	return IfElse(c.self, then, otherwise)
}

// stateCore is core plus explicit state storage for conditions that track
// their state directly.
type stateCore struct {
	core
	state bool
}

func (c *stateCore) State() bool { return c.state }

func (c *stateCore) Get() any { return c.state }

func (c *stateCore) setState(state bool) bool {
	if state == c.state {
		return false
	}
	c.state = state
	c.ValueChanged(state)
	return true
}

type constCondition struct {
	core
	state bool
}

func newConstant(state bool) Condition {
	c := &constCondition{state: state}
	c.init(c, weakref.Of(c))
	return c
}

func (c *constCondition) State() bool { return c.state }

func (c *constCondition) Get() any { return c.state }

// weakHandler builds a weak binding to one of our own heap objects, where
// construction cannot fail.
func weakHandler[T any](target *T, fn func(*T, ...any) any, args ...any) *bind.WeakBinding {
	h, err := bind.Weak(target, fn, args...)
	if err != nil {
		panic(err)
	}
	return h
}

// onReclaimOf runs fn against self once operand is reclaimed, resolving
// self through its own weak handle so the watch does not pin it.
func onReclaimOf[T any](operand *weakref.Ref, self *weakref.Ref, fn func(*T)) {
	operand.OnReclaim(func() {
		if v := self.Value(); v != nil {
			fn(v.(*T))
		}
	})
}
