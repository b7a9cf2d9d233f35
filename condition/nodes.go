package condition

import (
	"sync"

	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/protect"
	"github.com/reactivekit/notify/signal"
	"github.com/reactivekit/notify/value"
)

// term is one weakly referenced operand of a compound condition.  Once the
// operand is reclaimed the term freezes into the constant carrying its last
// known state.
type term struct {
	ref    *weakref.Ref
	frozen Condition
}

func (t *term) weak() bool { return t.frozen == nil }

// condition resolves the operand: the live one, the frozen constant, or nil
// for a reclaimed operand whose freeze has not run yet.
func (t *term) condition() Condition {
	if t.frozen != nil {
		return t.frozen
	}
	if v := t.ref.Value(); v != nil {
		return v.(Condition)
	}
	return nil
}

// notCondition tracks the negation of a single operand.
type notCondition struct {
	stateCore
	mu        sync.Mutex
	op        term
	protected bool
}

func newNot(operand Condition) Condition {
	n := &notCondition{}
	n.state = !operand.State()
	n.init(n, weakref.Of(n))
	n.op = term{ref: operand.handle()}
	n.SetSignalFactory(n.newSignal)

	operand.Changed().ConnectBinding(weakHandler(n, (*notCondition).onOperandChange))
	onReclaimOf(operand.handle(), n.ref, (*notCondition).operandDied)
	return n
}

func (n *notCondition) onOperandChange(args ...any) any {
	n.setState(!signal.Truthy(args[0]))
	return nil
}

// operand returns the negated condition, substituting its frozen stand-in
// once it is gone.  Used when folding double negation.
func (n *notCondition) operand() Condition {
	n.mu.Lock()
	defer n.mu.Unlock()
	if c := n.op.condition(); c != nil {
		return c
	}
	return toConstant(!n.state)
}

func (n *notCondition) operandDied() {
	n.mu.Lock()
	if n.op.weak() {
		n.op = term{frozen: toConstant(!n.state)}
	}
	release := n.protected
	n.protected = false
	n.mu.Unlock()
	if release {
		protect.Default().Unprotect(n)
	}
}

func (n *notCondition) newSignal() (*signal.Signal, value.SignalRef) {
	n.mu.Lock()
	if n.op.weak() && !n.protected {
		protect.Default().Protect(n)
		n.protected = true
	}
	n.mu.Unlock()

	s := signal.NewClean(n.ref, nil)
	return s, value.WeakSignalRef(s, n.signalDied)
}

func (n *notCondition) signalDied(ref value.SignalRef) {
	if !n.DropSignal(ref) {
		return
	}
	n.mu.Lock()
	release := n.protected
	n.protected = false
	n.mu.Unlock()
	if release {
		protect.Default().Unprotect(n)
	}
}

// State tables over the packed operand bits.  Term i owns bit
// len(terms)-1-i, so an if-else node's bits read if<<2 | then<<1 | else.
var (
	andTable    = [8]bool{3: true}
	orTable     = [8]bool{1: true, 2: true, 3: true}
	xorTable    = [8]bool{1: true, 2: true}
	ifElseTable = [8]bool{1: true, 3: true, 6: true, 7: true}
)

// tableCondition is a compound condition over two or three operands.  It
// keeps a packed snapshot of the operand states and computes its own state
// through a lookup table, so an operand change is a bit flip plus a lookup.
type tableCondition struct {
	core
	table [8]bool

	mu        sync.Mutex
	terms     []term
	bits      uint8
	protected bool
}

func newBinary(table [8]bool, a, b Condition) Condition {
	return newTableNode(table, a, b)
}

func newIfElse(cond, then, otherwise Condition) Condition {
	return newTableNode(ifElseTable, cond, then, otherwise)
}

func newTableNode(table [8]bool, operands ...Condition) *tableCondition {
	c := &tableCondition{table: table}
	c.init(c, weakref.Of(c))
	c.SetSignalFactory(c.newSignal)

	c.terms = make([]term, len(operands))
	for i, op := range operands {
		c.terms[i] = term{ref: op.handle()}
		if op.State() {
			c.bits |= c.bit(i)
		}
	}
	for i, op := range operands {
		op.Changed().ConnectBinding(weakHandler(c, (*tableCondition).onTermChange, i))
		onReclaimOf(op.handle(), c.ref, func(self *tableCondition) { self.termDied(i) })
	}
	return c
}

func (c *tableCondition) bit(i int) uint8 {
	return 1 << (len(c.terms) - 1 - i)
}

func (c *tableCondition) State() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table[c.bits]
}

func (c *tableCondition) Get() any { return c.State() }

func (c *tableCondition) onTermChange(args ...any) any {
	i := args[0].(int)
	on := signal.Truthy(args[1])

	c.mu.Lock()
	old := c.table[c.bits]
	if on {
		c.bits |= c.bit(i)
	} else {
		c.bits &^= c.bit(i)
	}
	now := c.table[c.bits]
	c.mu.Unlock()

	if now != old {
		c.ValueChanged(now)
	}
	return nil
}

func (c *tableCondition) termDied(i int) {
	c.mu.Lock()
	if c.terms[i].weak() {
		c.terms[i] = term{frozen: toConstant(c.bits&c.bit(i) != 0)}
	}
	release := c.protected && !c.anyWeak()
	if release {
		c.protected = false
	}
	c.mu.Unlock()

	if release {
		protect.Default().Unprotect(c)
	}
}

func (c *tableCondition) anyWeak() bool {
	for i := range c.terms {
		if c.terms[i].weak() {
			return true
		}
	}
	return false
}

func (c *tableCondition) newSignal() (*signal.Signal, value.SignalRef) {
	c.mu.Lock()
	if c.anyWeak() && !c.protected {
		protect.Default().Protect(c)
		c.protected = true
	}
	c.mu.Unlock()

	s := signal.NewClean(c.ref, nil)
	return s, value.WeakSignalRef(s, c.signalDied)
}

func (c *tableCondition) signalDied(ref value.SignalRef) {
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
