// Package diff compares desired graphs with live state graphs and reports the
// differences for humans and machines.
//
// An attribute absent from the desired config means "don't care": before
// comparing, the live config is normalized so that every attribute the
// desired config leaves nil is nil in the live config as well.
package diff

import (
	"math/big"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Normalize returns a copy of live in which every value that is nil in desired
// is masked to nil. Structs are masked field by field, maps key by key and
// pointers through their targets. live is not modified.
func Normalize[T any](desired, live T) T {
	masked := mask(reflect.ValueOf(&desired).Elem(), reflect.ValueOf(&live).Elem())
	return masked.Interface().(T)
}

var bigIntType = reflect.TypeOf((*big.Int)(nil))

func nilable(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

func mask(desired, live reflect.Value) reflect.Value {
	if nilable(desired) && desired.IsNil() {
		return reflect.Zero(live.Type())
	}

	switch live.Kind() {
	case reflect.Pointer:
		if live.IsNil() || live.Type() == bigIntType {
			return live
		}
		out := reflect.New(live.Type().Elem())
		out.Elem().Set(mask(desired.Elem(), live.Elem()))
		return out

	case reflect.Struct:
		out := reflect.New(live.Type()).Elem()
		out.Set(live)
		for i := 0; i < live.NumField(); i++ {
			if !out.Field(i).CanSet() {
				continue
			}
			out.Field(i).Set(mask(desired.Field(i), live.Field(i)))
		}
		return out

	case reflect.Map:
		if live.IsNil() {
			return live
		}
		out := reflect.MakeMapWithSize(live.Type(), desired.Len())
		iter := desired.MapRange()
		for iter.Next() {
			lv := live.MapIndex(iter.Key())
			if !lv.IsValid() {
				// A nil desired value matches a missing live key.
				if nilable(iter.Value()) && iter.Value().IsNil() {
					out.SetMapIndex(iter.Key(), reflect.Zero(live.Type().Elem()))
				}
				continue
			}
			out.SetMapIndex(iter.Key(), mask(iter.Value(), lv))
		}
		return out

	case reflect.Interface:
		if live.IsNil() || desired.Elem().Type() != live.Elem().Type() {
			return live
		}
		out := reflect.New(live.Type()).Elem()
		out.Set(mask(desired.Elem(), live.Elem()))
		return out
	}

	return live
}

var bigIntComparer = cmp.Comparer(func(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Cmp(b) == 0
})

// Equal reports whether desired and the normalized live config match.
func Equal[T any](desired, live T) bool {
	return cmp.Equal(desired, Normalize(desired, live), bigIntComparer)
}

// Diff returns a human readable difference between desired and the normalized
// live config, or an empty string when they match.
func Diff[T any](desired, live T) string {
	return cmp.Diff(desired, Normalize(desired, live), bigIntComparer)
}
