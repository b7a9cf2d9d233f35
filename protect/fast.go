package protect

import "sync"

// Fast is the production protector: a reference-counting pin table with no
// error checking.  Unprotecting an object more times than it was protected
// is undefined behaviour; Fast keeps decrementing the global count so the
// imbalance still shows up in ActiveProtections, but the object itself is
// already unpinned.  Use Raising or Debug to hunt such bugs down.
type Fast struct {
	mu      sync.Mutex
	objects map[any]int
	active  int
}

// NewFast creates an empty Fast protector.
func NewFast() *Fast {
	return &Fast{objects: make(map[any]int)}
}

func (f *Fast) Protect(obj any) any {
	if obj == nil {
		return nil
	}

	f.mu.Lock()
	f.objects[obj]++
	f.active++
	f.mu.Unlock()
	return obj
}

func (f *Fast) Unprotect(obj any) any {
	if obj == nil {
		return nil
	}

	f.mu.Lock()
	switch n := f.objects[obj]; {
	case n > 1:
		f.objects[obj] = n - 1
	case n == 1:
		delete(f.objects, obj)
	}
	f.active--
	f.mu.Unlock()
	return obj
}

func (f *Fast) ActiveProtections() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}
