package signal

import (
	"weak"

	"github.com/reactivekit/notify/bind"
)

// Parent is a non-owning view of the object a clean signal notifies for.
// *weakref.Ref implements it.
type Parent interface {
	Value() any
	Alive() bool
	OnReclaim(func())
}

// NewClean creates a clean signal: weak handler bindings connected to it are
// dropped the moment their target is reclaimed, and while the signal has at
// least one handler and its parent is alive, the signal pins itself with the
// default protector.  That keeps a notification chain alive exactly as long
// as something still observes it.
//
// parent may be nil; the signal then only provides eager garbage collection
// of dead handlers.
func NewClean(parent Parent, acc Accumulator) *Signal {
	s := &Signal{acc: acc, clean: true, parent: parent}
	if parent != nil {
		// The cleanup hook must not pin the signal itself.
		ws := weak.Make(s)
		parent.OnReclaim(func() {
			if sig := ws.Value(); sig != nil {
				sig.Orphan()
			}
		})
	}
	return s
}

// Orphan detaches the signal from its parent.  If the signal was pinning
// itself on the parent's behalf, the protection is released.
func (s *Signal) Orphan() {
	s.mu.Lock()
	s.parent = nil
	if s.protected {
		s.unprotectSelf()
	}
	s.mu.Unlock()
}

// parentAlive must be called with s.mu held.
func (s *Signal) parentAlive() bool {
	return s.parent != nil && s.parent.Alive()
}

type reclaimNotifier interface {
	OnReclaim(func())
}

// watchReclamation makes a clean signal compact immediately when a weak
// handler's target dies.  Plain signals sweep lazily during Emit instead.
func (s *Signal) watchReclamation(h bind.Caller) {
	if !s.clean {
		return
	}
	if wb, ok := h.(reclaimNotifier); ok {
		wb.OnReclaim(s.CollectGarbage)
	}
}
