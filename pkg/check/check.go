package check

import (
	"fmt"

	"github.com/pkg/errors"
)

func check(ok bool, msgAndArgs []interface{}, format string, args ...interface{}) error {
	if ok {
		return nil
	}
	detail := fmt.Sprintf(format, args...)
	if msg := message(msgAndArgs...); msg != "" {
		return errors.Errorf("%s: %s", msg, detail)
	}
	return errors.New(detail)
}

func message(msgAndArgs ...interface{}) string {
	switch {
	case len(msgAndArgs) == 1:
		if msg, ok := msgAndArgs[0].(string); ok {
			return msg
		}
		return fmt.Sprintf("%+v", msgAndArgs[0])
	case len(msgAndArgs) > 1:
		return fmt.Sprintf(msgAndArgs[0].(string), msgAndArgs[1:]...)
	default:
		return ""
	}
}

// True checks that actual is true.
func True(actual bool, msgAndArgs ...interface{}) error {
	return check(actual, msgAndArgs, "expected true, got false")
}

// NotEmpty checks that a string is not empty.
func NotEmpty(actual string, msgAndArgs ...interface{}) error {
	return check(actual != "", msgAndArgs, "expected a non-empty value")
}

// GreaterThan checks that actual > bound.
func GreaterThan(actual, bound int, msgAndArgs ...interface{}) error {
	return check(actual > bound, msgAndArgs, "%d is not greater than %d", actual, bound)
}

// GreaterThanOrEqualTo checks that actual >= bound.
func GreaterThanOrEqualTo(actual, bound int, msgAndArgs ...interface{}) error {
	return check(actual >= bound, msgAndArgs, "%d is less than %d", actual, bound)
}

// Contains checks that actual is one of expected.
func Contains(actual string, expected []string, msgAndArgs ...interface{}) error {
	for _, value := range expected {
		if value == actual {
			return nil
		}
	}
	return check(false, msgAndArgs, "%q not in %v", actual, expected)
}
