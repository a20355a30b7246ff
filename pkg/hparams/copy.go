package hparams

import (
	"fmt"
	"reflect"
)

// deepCopy copies a hyperparameter value so that lists and maps are never shared between two
// sets.
func deepCopy(val interface{}) interface{} {
	if val == nil {
		return nil
	}
	return cpy(reflect.ValueOf(val)).Interface()
}

// cpy is for deep copying, but it will only work on "nice" objects, which covers anything that
// can appear in a decoded config file.
func cpy(v reflect.Value) reflect.Value {
	var out reflect.Value

	switch v.Kind() {
	case reflect.Ptr:
		if v.IsNil() {
			return v
		}
		out = reflect.New(v.Elem().Type())
		out.Elem().Set(cpy(v.Elem()))

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out = cpy(v.Elem())

	case reflect.Struct:
		out = reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if !out.Field(i).CanSet() {
				// Unexported fields can't be copied through reflection; take the struct as-is.
				return v
			}
			out.Field(i).Set(cpy(v.Field(i)))
		}

	case reflect.Map:
		typ := reflect.MapOf(v.Type().Key(), v.Type().Elem())
		if v.IsNil() {
			out = reflect.Zero(typ)
		} else {
			out = reflect.MakeMapWithSize(typ, v.Len())
			for _, key := range v.MapKeys() {
				out.SetMapIndex(key, cpy(v.MapIndex(key)))
			}
		}

	case reflect.Slice:
		typ := reflect.SliceOf(v.Type().Elem())
		if v.IsNil() {
			out = reflect.Zero(typ)
		} else {
			out = reflect.MakeSlice(typ, 0, v.Len())
			for i := 0; i < v.Len(); i++ {
				out = reflect.Append(out, cpy(v.Index(i)))
			}
		}

	case reflect.Array:
		out = reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cpy(v.Index(i)))
		}

	case reflect.Chan,
		reflect.Func,
		reflect.UnsafePointer:
		panic(fmt.Sprintf("unable to copy hyperparameter of kind %v", v.Kind()))

	default:
		// Simple types like string or int can be passed directly.
		return v
	}

	return out.Convert(v.Type())
}
