package value

import "reflect"

// Variable is the general-purpose mutable holder.  Values are compared with
// deep equality, so storing an equal value emits nothing.
type Variable struct {
	Base
	value   any
	allowed func(v any) bool
}

// NewVariable creates a variable initialized to v.
func NewVariable(v any) *Variable {
	variable := &Variable{value: v}
	variable.Init(variable)
	return variable
}

// NewRestrictedVariable creates a variable that only accepts values for
// which allowed returns true.  The initial value must be acceptable.
func NewRestrictedVariable(v any, allowed func(v any) bool) *Variable {
	if allowed == nil {
		panic("value: nil predicate")
	}
	if !allowed(v) {
		panic("value: initial value is not allowed")
	}
	variable := &Variable{value: v, allowed: allowed}
	variable.Init(variable)
	return variable
}

// Get returns the current value.
func (v *Variable) Get() any { return v.value }

// IsMutable reports true.
func (v *Variable) IsMutable() bool { return true }

// IsAllowedValue reports whether the variable would accept val.
func (v *Variable) IsAllowedValue(val any) bool {
	return v.allowed == nil || v.allowed(val)
}

// Set stores val and reports whether it differed from the old value.
// Setting a disallowed value on a restricted variable panics.
func (v *Variable) Set(val any) bool {
	if !v.IsAllowedValue(val) {
		panic("value: value is not allowed")
	}
	if reflect.DeepEqual(v.value, val) {
		return false
	}
	v.value = val
	v.ValueChanged(val)
	return true
}

// SetFunc rewrites the value through fn, e.g. to mutate a field in place
// and re-store the result.
func (v *Variable) SetFunc(fn func(old any) any) bool {
	if fn == nil {
		panic("value: nil update function")
	}
	return v.Set(fn(v.value))
}
