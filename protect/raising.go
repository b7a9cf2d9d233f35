package protect

import "sync"

// Raising is a debugging protector that panics with *UnprotectionError on
// an unprotect without a matching protect.  Otherwise it behaves like Fast.
type Raising struct {
	mu      sync.Mutex
	objects map[any]int
	active  int
}

// NewRaising creates an empty Raising protector.
func NewRaising() *Raising {
	return &Raising{objects: make(map[any]int)}
}

func (r *Raising) Protect(obj any) any {
	if obj == nil {
		return nil
	}

	r.mu.Lock()
	r.objects[obj]++
	r.active++
	r.mu.Unlock()
	return obj
}

func (r *Raising) Unprotect(obj any) any {
	if obj == nil {
		return nil
	}

	r.mu.Lock()
	n := r.objects[obj]
	if n == 0 {
		r.mu.Unlock()
		panic(&UnprotectionError{Object: obj})
	}
	if n == 1 {
		delete(r.objects, obj)
	} else {
		r.objects[obj] = n - 1
	}
	r.active--
	r.mu.Unlock()
	return obj
}

func (r *Raising) ActiveProtections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Protections returns the number of outstanding protections of obj.
func (r *Raising) Protections(obj any) int {
	if obj == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.objects[obj]
}
