package condition

import (
	"sync"

	"github.com/reactivekit/notify/bind"
	"github.com/reactivekit/notify/internal/weakref"
	"github.com/reactivekit/notify/protect"
	"github.com/reactivekit/notify/signal"
	"github.com/reactivekit/notify/value"
)

// Watcher is a proxy condition whose state always matches a switchable
// watched condition.  Handlers connect to the watcher once; switching the
// watched condition is a single Watch call instead of reconnecting every
// handler, and a state difference between the old and new watched
// conditions fires the watcher's changed signal by itself.
//
// A watcher that watches nothing has state false.  The watched condition is
// referenced weakly; if it is reclaimed the watcher keeps its last state and
// simply stops watching.
type Watcher struct {
	stateCore

	mu        sync.Mutex
	watched   *weakref.Ref
	protected bool

	follow bind.Caller
}

// NewWatcher creates a watcher, initially watching watch (may be nil).
func NewWatcher(watch Condition) *Watcher {
	w := &Watcher{}
	w.init(w, weakref.Of(w))
	w.SetSignalFactory(w.newSignal)
	w.follow = weakHandler(w, (*Watcher).onWatchedChange)
	if watch != nil {
		w.Watch(watch)
	}
	return w
}

// Watch switches the watched condition to c, adopting its state; nil stops
// watching and resets the state to false.  It reports whether the watcher's
// own state changed as a result.  Watching the watcher itself panics.
func (w *Watcher) Watch(c Condition) bool {
	if Condition(w) == c {
		panic("condition: watcher cannot watch itself")
	}

	old := w.Watched()
	if old != nil {
		old.Changed().DisconnectBinding(w.follow)
	}
	hasSignal := w.HasSignal()

	w.mu.Lock()
	wasWatching := w.watched != nil
	if c != nil {
		ref := c.handle()
		w.watched = ref
		onReclaimOf(ref, w.ref, func(self *Watcher) { self.watchedDied(ref) })
	} else {
		w.watched = nil
	}
	watching := w.watched != nil

	var release bool
	if hasSignal {
		switch {
		case !wasWatching && watching:
			if !w.protected {
				protect.Default().Protect(w)
				w.protected = true
			}
		case wasWatching && !watching:
			release = w.protected
			w.protected = false
		}
	}
	w.mu.Unlock()

	if release {
		protect.Default().Unprotect(w)
	}

	if c == nil {
		return w.setState(false)
	}
	changed := w.setState(c.State())
	c.Changed().ConnectBinding(w.follow)
	return changed
}

// Watched returns the currently watched condition, nil if none.
func (w *Watcher) Watched() Condition {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched == nil {
		return nil
	}
	if v := w.watched.Value(); v != nil {
		return v.(Condition)
	}
	return nil
}

func (w *Watcher) onWatchedChange(args ...any) any {
	w.setState(signal.Truthy(args[0]))
	return nil
}

// watchedDied handles reclamation of a watched condition; the watch may
// have been switched since, so only the current one counts.
func (w *Watcher) watchedDied(ref *weakref.Ref) {
	w.mu.Lock()
	if w.watched != ref {
		w.mu.Unlock()
		return
	}
	w.watched = nil
	release := w.protected
	w.protected = false
	w.mu.Unlock()

	if release {
		protect.Default().Unprotect(w)
	}
}

func (w *Watcher) newSignal() (*signal.Signal, value.SignalRef) {
	w.mu.Lock()
	if w.watched != nil && !w.protected {
		protect.Default().Protect(w)
		w.protected = true
	}
	w.mu.Unlock()

	s := signal.NewClean(w.ref, nil)
	return s, value.WeakSignalRef(s, w.signalDied)
}

func (w *Watcher) signalDied(ref value.SignalRef) {
	if !w.DropSignal(ref) {
		return
	}
	w.mu.Lock()
	release := w.protected
	w.protected = false
	w.mu.Unlock()

	if release {
		protect.Default().Unprotect(w)
	}
}
