// Package check walks configuration structs and collects the errors reported by every nested
// Validatable value.
package check

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Validatable is implemented by anything that has fields that should be validated.
type Validatable interface {
	Validate() []error
}

type validationError struct {
	errs []error
}

func (v validationError) Error() string {
	msgs := make([]string, 0, len(v.errs))
	for _, err := range v.errs {
		msgs = append(msgs, err.Error())
	}
	sort.Strings(msgs)
	return fmt.Sprintf("Check Failed! %d errors found:\n\t%s", len(v.errs), strings.Join(msgs, "\n\t"))
}

// Validate walks v and returns a single error combining every failed check, or nil.
func Validate(v interface{}) error {
	errs := validate(reflect.ValueOf(v), "root")
	if len(errs) == 0 {
		return nil
	}
	return validationError{errs: errs}
}

func validate(v reflect.Value, path string) []error {
	var errs []error
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Ptr {
			return validate(v.Elem(), path)
		}
		errs = append(errs, validate(v.Elem(), path)...)
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			errs = append(errs, validate(v.Index(i), fmt.Sprintf("%s[%d]", path, i))...)
		}
	case reflect.Map:
		for _, key := range v.MapKeys() {
			errs = append(errs, validate(v.MapIndex(key),
				fmt.Sprintf("%s[%v]", path, key.Interface()))...)
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			errs = append(errs, validate(v.Field(i),
				fmt.Sprintf("%s.%s", path, v.Type().Field(i).Name))...)
		}
	case reflect.Invalid:
		return nil
	}

	if v.Kind() == reflect.Interface {
		return errs
	}
	// Check both method sets by validating through a pointer to a copy.
	vp := reflect.New(v.Type())
	vp.Elem().Set(v)
	if validatable, ok := vp.Interface().(Validatable); ok {
		for _, err := range validatable.Validate() {
			if err != nil {
				errs = append(errs, errors.Wrapf(err, "error found at %s", path))
			}
		}
	}
	return errs
}
