package protect

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"
)

// Debug counts protections like Raising, but an unbalanced unprotect is
// logged instead of panicking, so a misbehaving program can keep running
// while the imbalance is investigated.
type Debug struct {
	mu      sync.Mutex
	objects map[any]int
	active  int
	logger  *zap.Logger
}

// NewDebug creates a Debug protector logging through logger.  A nil logger
// falls back to zap's no-op logger.
func NewDebug(logger *zap.Logger) *Debug {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Debug{objects: make(map[any]int), logger: logger}
}

func (d *Debug) Protect(obj any) any {
	if obj == nil {
		return nil
	}

	d.mu.Lock()
	d.objects[obj]++
	d.active++
	d.mu.Unlock()
	return obj
}

func (d *Debug) Unprotect(obj any) any {
	if obj == nil {
		return nil
	}

	d.mu.Lock()
	n := d.objects[obj]
	switch {
	case n == 0:
		d.mu.Unlock()
		d.logger.Error("unprotect without matching protect",
			zap.Any("object", obj))
		return obj
	case n == 1:
		delete(d.objects, obj)
	default:
		d.objects[obj] = n - 1
	}
	d.active--
	d.mu.Unlock()
	return obj
}

func (d *Debug) ActiveProtections() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Protections returns the number of outstanding protections of obj.
func (d *Debug) Protections(obj any) int {
	if obj == nil {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[obj]
}

// Protected returns a snapshot of the currently protected objects.
func (d *Debug) Protected() mapset.Set[any] {
	set := mapset.NewSet[any]()

	d.mu.Lock()
	for obj := range d.objects {
		set.Add(obj)
	}
	d.mu.Unlock()
	return set
}
