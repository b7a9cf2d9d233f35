package signal

import "reflect"

// Accumulator folds handler return values into a single emission result and
// may cut the emission short.
type Accumulator interface {
	// InitialValue is the result of an emission with no handlers.
	InitialValue() any

	// Accumulate folds the next handler's return value into the running
	// result.
	Accumulate(accumulated, value any) any

	// ShouldContinue reports whether remaining handlers are still invoked.
	ShouldContinue(accumulated any) bool

	// PostProcess maps the final accumulated value to the emission result.
	PostProcess(accumulated any) any
}

// Stock accumulators.
var (
	// AnyAccepts stops emission at the first handler returning a truthy
	// value, which becomes the result.  With no handlers the result is
	// false.
	AnyAccepts Accumulator = anyAccepts{}

	// AllAccept stops emission at the first handler returning a falsy
	// value, which becomes the result.  With no handlers the result is
	// true.
	AllAccept Accumulator = allAccept{}

	// LastValue yields the return value of the last invoked handler, nil
	// with no handlers.
	LastValue Accumulator = lastValue{}

	// ValueList collects all handler return values into a []any.
	ValueList Accumulator = valueList{}
)

type anyAccepts struct{}

func (anyAccepts) InitialValue() any                { return false }
func (anyAccepts) Accumulate(_, value any) any      { return value }
func (anyAccepts) ShouldContinue(accumulated any) bool { return !Truthy(accumulated) }
func (anyAccepts) PostProcess(accumulated any) any  { return accumulated }

type allAccept struct{}

func (allAccept) InitialValue() any                { return true }
func (allAccept) Accumulate(_, value any) any      { return value }
func (allAccept) ShouldContinue(accumulated any) bool { return Truthy(accumulated) }
func (allAccept) PostProcess(accumulated any) any  { return accumulated }

type lastValue struct{}

func (lastValue) InitialValue() any               { return nil }
func (lastValue) Accumulate(_, value any) any     { return value }
func (lastValue) ShouldContinue(any) bool         { return true }
func (lastValue) PostProcess(accumulated any) any { return accumulated }

type valueList struct{}

func (valueList) InitialValue() any { return []any{} }

func (valueList) Accumulate(accumulated, value any) any {
	return append(accumulated.([]any), value)
}

func (valueList) ShouldContinue(any) bool         { return true }
func (valueList) PostProcess(accumulated any) any { return accumulated }

// Truthy reports the logical value of v: nil, false, numeric zero and empty
// strings, slices, maps and arrays are falsy; everything else is truthy.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case int:
		return x != 0
	case int64:
		return x != 0
	case uint64:
		return x != 0
	case float64:
		return x != 0
	case string:
		return x != ""
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Complex64, reflect.Complex128:
		return rv.Complex() != 0
	case reflect.String, reflect.Slice, reflect.Map, reflect.Array, reflect.Chan:
		return rv.Len() != 0
	case reflect.Pointer, reflect.Interface, reflect.Func, reflect.UnsafePointer:
		return !rv.IsNil()
	default:
		return true
	}
}
