// Package signal implements emission of events to ordered handler lists.
//
// A Signal keeps a list of handler bindings and invokes them in connection
// order on every Emit.  Handlers can be connected several times, blocked
// temporarily, and disconnected safely even while an emission is running.
// An optional Accumulator folds handler return values into the emission
// result and may cut the emission short.
//
// Clean signals additionally notice garbage-collected weak handlers
// immediately and pin themselves for the object they notify about; see
// NewClean.
//
// The public API contract is single-goroutine; internal state is still
// mutex-guarded because reclamation callbacks arrive on the runtime's
// cleanup goroutine.
package signal

import (
	"sync"

	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/protect"
)

// Signal is an ordered list of handlers that are invoked on each emission.
type Signal struct {
	mu       sync.Mutex
	handlers []bind.Caller // nil slots are tombstones left by mid-emission disconnects
	blocked  map[uint64][]blockEntry
	acc      Accumulator

	// Emission depth; negated while the innermost emission is stopped.
	level int

	clean     bool
	parent    Parent
	protected bool
}

// New creates a signal without an accumulator; Emit returns nil.
func New() *Signal {
	return &Signal{}
}

// NewAccumulating creates a signal whose emissions fold handler return
// values through acc.
func NewAccumulating(acc Accumulator) *Signal {
	return &Signal{acc: acc}
}

// HasHandlers reports whether any handler is connected and invocable.
func (s *Signal) HasHandlers() bool {
	return s.CountHandlers() > 0
}

// CountHandlers returns the number of connected, invocable handlers.
func (s *Signal) CountHandlers() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, h := range s.handlers {
		if h != nil && h.Alive() {
			count++
		}
	}
	return count
}

// Accumulator returns the signal's accumulator, nil if it has none.
func (s *Signal) Accumulator() Accumulator {
	return s.acc
}

// Connect appends fn (with bound args) to the handler list.  The same
// handler may be connected multiple times; it is then invoked that many
// times per emission.
func (s *Signal) Connect(fn bind.Func, args ...any) {
	s.ConnectBinding(bind.New(fn, args...))
}

// ConnectBinding appends a prebuilt binding to the handler list.
func (s *Signal) ConnectBinding(h bind.Caller) {
	if h == nil {
		panic("signal: nil handler")
	}

	s.mu.Lock()
	if s.clean && len(s.handlers) == 0 && s.parentAlive() {
		s.protectSelf()
	}
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()

	s.watchReclamation(h)
}

// ConnectSafe connects fn unless an equal handler is already connected.
// It reports whether this call connected it.
func (s *Signal) ConnectSafe(fn bind.Func, args ...any) bool {
	return s.ConnectSafeBinding(bind.New(fn, args...))
}

// ConnectSafeBinding connects h unless an equal binding is already
// connected.
func (s *Signal) ConnectSafeBinding(h bind.Caller) bool {
	if h == nil {
		panic("signal: nil handler")
	}

	s.mu.Lock()
	if s.isConnected(h) {
		s.mu.Unlock()
		return false
	}
	if s.clean && len(s.handlers) == 0 && s.parentAlive() {
		s.protectSelf()
	}
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()

	s.watchReclamation(h)
	return true
}

// ConnectScoped connects fn and returns the matching disconnect.
func (s *Signal) ConnectScoped(fn bind.Func, args ...any) func() {
	h := bind.New(fn, args...)
	s.ConnectBinding(h)
	return func() { s.DisconnectBinding(h) }
}

// IsConnected reports whether an equal handler is connected.
func (s *Signal) IsConnected(fn bind.Func, args ...any) bool {
	return s.IsConnectedBinding(bind.New(fn, args...))
}

// IsConnectedBinding reports whether a binding equal to h is connected.
func (s *Signal) IsConnectedBinding(h bind.Caller) bool {
	if h == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isConnected(h)
}

// Disconnect removes the LAST connected handler equal to fn with args, so
// that a connect followed by a disconnect is always a no-op.  It reports
// whether anything was removed.
func (s *Signal) Disconnect(fn bind.Func, args ...any) bool {
	return s.DisconnectBinding(bind.New(fn, args...))
}

// DisconnectBinding removes the last connected binding equal to h.
func (s *Signal) DisconnectBinding(h bind.Caller) bool {
	return s.disconnect(h, false)
}

// DisconnectAll removes every connected handler equal to fn with args.
func (s *Signal) DisconnectAll(fn bind.Func, args ...any) bool {
	return s.DisconnectAllBinding(bind.New(fn, args...))
}

// DisconnectAllBinding removes every connected binding equal to h.
func (s *Signal) DisconnectAllBinding(h bind.Caller) bool {
	return s.disconnect(h, true)
}

func (s *Signal) disconnect(h bind.Caller, all bool) bool {
	if h == nil {
		return false
	}

	s.mu.Lock()
	removed := false
	for i := len(s.handlers) - 1; i >= 0; i-- {
		c := s.handlers[i]
		if c == nil || !h.EqualTo(c) {
			continue
		}

		// Splicing the list mid-emission would derail the running
		// handler loop, so only tombstone there.
		if s.level == 0 {
			s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
		} else {
			s.handlers[i] = nil
		}
		removed = true
		if !all {
			break
		}
	}

	if removed {
		if !s.isConnected(h) {
			s.purgeBlocks(h)
		}
		if s.level == 0 && len(s.handlers) == 0 {
			s.handlers = nil
			if s.clean && s.protected {
				s.unprotectSelf()
			}
		}
	}
	s.mu.Unlock()
	return removed
}

// Block suppresses invocation of the handler equal to fn with args until
// unblocked.  Blocks stack: blocking twice requires unblocking twice.  A
// handler must be connected to be blocked.
func (s *Signal) Block(fn bind.Func, args ...any) bool {
	return s.BlockBinding(bind.New(fn, args...))
}

// BlockBinding blocks the connected binding equal to h.
func (s *Signal) BlockBinding(h bind.Caller) bool {
	if h == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isConnected(h) {
		return false
	}
	s.addBlock(h)
	return true
}

// Unblock removes one block of the handler equal to fn with args.
func (s *Signal) Unblock(fn bind.Func, args ...any) bool {
	return s.UnblockBinding(bind.New(fn, args...))
}

// UnblockBinding removes one block of the binding equal to h.
func (s *Signal) UnblockBinding(h bind.Caller) bool {
	if h == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeBlock(h)
}

// IsBlocked reports whether the handler equal to fn with args is blocked.
func (s *Signal) IsBlocked(fn bind.Func, args ...any) bool {
	return s.IsBlockedBinding(bind.New(fn, args...))
}

// IsBlockedBinding reports whether the binding equal to h is blocked.
func (s *Signal) IsBlockedBinding(h bind.Caller) bool {
	if h == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockCount(h) > 0
}

// BlockScoped blocks fn and returns the matching unblock.
func (s *Signal) BlockScoped(fn bind.Func, args ...any) func() {
	h := bind.New(fn, args...)
	s.BlockBinding(h)
	return func() { s.UnblockBinding(h) }
}

// Emit invokes the connected handlers in connection order, passing args.
// Handlers connected during the emission are invoked by it too.  Without an
// accumulator the result is nil; with one it is the accumulator's fold over
// handler return values.
func (s *Signal) Emit(args ...any) any {
	var value any
	if s.acc != nil {
		value = s.acc.InitialValue()
	}

	s.mu.Lock()
	if len(s.handlers) > 0 {
		saved := s.level
		if saved < 0 {
			s.level = -saved + 1
		} else {
			s.level = saved + 1
		}
		s.mu.Unlock()

		garbage := false
		defer func() {
			s.mu.Lock()
			s.level = saved
			collect := garbage && saved == 0
			s.mu.Unlock()
			if collect {
				s.CollectGarbage()
			}
		}()

		for i := 0; ; i++ {
			s.mu.Lock()
			if i >= len(s.handlers) {
				s.mu.Unlock()
				break
			}
			if s.level < 0 {
				garbage = true
				s.mu.Unlock()
				break
			}
			h := s.handlers[i]
			blocked := h != nil && s.blockCount(h) > 0
			s.mu.Unlock()

			if h == nil {
				garbage = true
				continue
			}
			if blocked {
				continue
			}
			if !h.Alive() {
				// Reclaimed weak binding; CollectGarbage will
				// drop it.
				garbage = true
				continue
			}

			out, ok := s.invoke(h, args)
			if !ok {
				continue
			}
			if s.acc != nil {
				value = s.acc.Accumulate(value, out)
				if !s.acc.ShouldContinue(value) {
					garbage = true
					break
				}
			}
		}
	} else {
		s.mu.Unlock()
	}

	if s.acc == nil {
		return nil
	}
	return s.acc.PostProcess(value)
}

func (s *Signal) invoke(h bind.Caller, args []any) (value any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			currentPolicy()(s, h, r)
			value, ok = nil, false
		}
	}()
	return h.Call(args...), true
}

// StopEmission stops the innermost running emission: its remaining handlers
// are skipped.  Outer (recursive) emissions are unaffected.  It reports
// whether an emission was actually stopped.
func (s *Signal) StopEmission() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level > 0 {
		s.level = -s.level
		return true
	}
	return false
}

// EmissionLevel returns the current emission nesting depth.
func (s *Signal) EmissionLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.level < 0 {
		return -s.level
	}
	return s.level
}

// IsEmissionStopped reports whether the latest emission has been stopped.
func (s *Signal) IsEmissionStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level < 0
}

// CollectGarbage drops tombstones and reclaimed weak bindings.  It is a
// no-op during emission; the running Emit compacts afterwards.
func (s *Signal) CollectGarbage() {
	s.mu.Lock()
	if s.handlers == nil || s.level != 0 {
		s.mu.Unlock()
		return
	}

	kept := s.handlers[:0]
	for _, h := range s.handlers {
		if h != nil && h.Alive() {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(s.handlers); i++ {
		s.handlers[i] = nil
	}

	if len(kept) == 0 {
		s.handlers = nil
		if s.clean && s.protected {
			s.unprotectSelf()
		}
	} else {
		s.handlers = kept
	}
	s.mu.Unlock()
}

// blockEntry is one equality class of blocked handlers within a hash
// bucket.  Distinct bindings can share a hash, so blocks are resolved with
// EqualTo; the hash only narrows the search.
type blockEntry struct {
	handler bind.Caller
	count   int
}

func (s *Signal) blockCount(h bind.Caller) int {
	for _, e := range s.blocked[h.Hash()] {
		if e.handler.EqualTo(h) {
			return e.count
		}
	}
	return 0
}

func (s *Signal) addBlock(h bind.Caller) {
	if s.blocked == nil {
		s.blocked = make(map[uint64][]blockEntry)
	}
	key := h.Hash()
	bucket := s.blocked[key]
	for i := range bucket {
		if bucket[i].handler.EqualTo(h) {
			bucket[i].count++
			return
		}
	}
	s.blocked[key] = append(bucket, blockEntry{handler: h, count: 1})
}

func (s *Signal) removeBlock(h bind.Caller) bool {
	key := h.Hash()
	bucket := s.blocked[key]
	for i := range bucket {
		if !bucket[i].handler.EqualTo(h) {
			continue
		}
		bucket[i].count--
		if bucket[i].count == 0 {
			s.dropBlockEntry(key, i)
		}
		return true
	}
	return false
}

// purgeBlocks drops every block of h at once, for when its last connected
// instance disconnects.
func (s *Signal) purgeBlocks(h bind.Caller) {
	key := h.Hash()
	for i, e := range s.blocked[key] {
		if e.handler.EqualTo(h) {
			s.dropBlockEntry(key, i)
			return
		}
	}
}

func (s *Signal) dropBlockEntry(key uint64, i int) {
	bucket := s.blocked[key]
	bucket = append(bucket[:i], bucket[i+1:]...)
	if len(bucket) == 0 {
		delete(s.blocked, key)
	} else {
		s.blocked[key] = bucket
	}
}

func (s *Signal) isConnected(h bind.Caller) bool {
	for _, c := range s.handlers {
		if c != nil && h.EqualTo(c) {
			return true
		}
	}
	return false
}

func (s *Signal) protectSelf() {
	protect.Default().Protect(s)
	s.protected = true
}

func (s *Signal) unprotectSelf() {
	protect.Default().Unprotect(s)
	s.protected = false
}
