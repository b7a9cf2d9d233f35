package condition

import (
	"sync"

	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/protect"
	"github.com/reactivekit/notify/signal"
	"github.com/reactivekit/notify/value"
)

// Predicate is an immutable condition whose state is a predicate over some
// object.  It has no way to notice the object changing, so the state must
// be refreshed with Update.  For a variable-driven automatic flavour see
// OverVariable.
type Predicate struct {
	stateCore
	pred func(any) bool
}

// NewPredicate creates a predicate condition, evaluating pred over initial.
func NewPredicate(pred func(any) bool, initial any) *Predicate {
	if pred == nil {
		panic("condition: nil predicate")
	}
	p := &Predicate{pred: pred}
	p.state = pred(initial)
	p.init(p, weakref.Of(p))
	return p
}

// Update reevaluates the predicate over obj, reporting whether the state
// changed.
func (p *Predicate) Update(obj any) bool {
	return p.setState(p.pred(obj))
}

// variableCondition tracks a predicate over a variable's value.  The
// variable is referenced weakly; once it is reclaimed the state freezes.
type variableCondition struct {
	stateCore
	pred func(any) bool

	mu        sync.Mutex
	variable  *weakref.Ref
	protected bool
}

// OverVariable returns a condition that is true while pred holds for v's
// value, reevaluated on every change of v.
func OverVariable(v *value.Variable, pred func(any) bool) Condition {
	if v == nil {
		panic("condition: nil variable")
	}
	if pred == nil {
		panic("condition: nil predicate")
	}

	c := &variableCondition{pred: pred}
	c.state = pred(v.Get())
	c.init(c, weakref.Of(c))
	c.SetSignalFactory(c.newSignal)
	c.variable = weakref.Of(v)

	v.Changed().ConnectBinding(weakHandler(c, (*variableCondition).onValueChange))
	onReclaimOf(c.variable, c.ref, (*variableCondition).variableDied)
	return c
}

func (c *variableCondition) onValueChange(args ...any) any {
	c.setState(c.pred(args[0]))
	return nil
}

func (c *variableCondition) variableDied() {
	c.mu.Lock()
	release := c.protected
	c.protected = false
	c.mu.Unlock()

	if release {
		protect.Default().Unprotect(c)
	}
}

func (c *variableCondition) newSignal() (*signal.Signal, value.SignalRef) {
	c.mu.Lock()
	if c.variable.Alive() && !c.protected {
		protect.Default().Protect(c)
		c.protected = true
	}
	c.mu.Unlock()

	s := signal.NewClean(c.ref, nil)
	return s, value.WeakSignalRef(s, c.signalDied)
}

func (c *variableCondition) signalDied(ref value.SignalRef) {
	if !c.DropSignal(ref) {
		return
	}
	c.mu.Lock()
	release := c.protected
	c.protected = false
	c.mu.Unlock()

	if release {
		protect.Default().Unprotect(c)
	}
}
