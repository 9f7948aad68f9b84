// Package testutil holds small assertion helpers shared by the test
// suites.  They wrap the standard testing package; no external test
// framework is used.
package testutil

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func AssertEqual(t testing.TB, expected, actual any, msgAndArgs ...any) {
	t.Helper()
	if !reflect.DeepEqual(expected, actual) {
		t.Errorf(
			"Not equal: \nexpected: %v\nactual  : %v\n%s",
			expected,
			actual,
			formatMsgAndArgs(msgAndArgs...),
		)
	}
}

func AssertTrue(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if !condition {
		t.Errorf("Expected condition to be true\n%s", formatMsgAndArgs(msgAndArgs...))
	}
}

func AssertFalse(t testing.TB, condition bool, msgAndArgs ...any) {
	t.Helper()
	if condition {
		t.Errorf("Expected condition to be false\n%s", formatMsgAndArgs(msgAndArgs...))
	}
}

func AssertNoError(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v\n%s", err, formatMsgAndArgs(msgAndArgs...))
	}
}

func AssertError(t testing.TB, err error, msgAndArgs ...any) {
	t.Helper()
	if err == nil {
		t.Fatalf("Expected an error but got nil\n%s", formatMsgAndArgs(msgAndArgs...))
	}
}

func AssertErrorIs(t testing.TB, err, target error, msgAndArgs ...any) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf(
			"Expected error to be %v but got %v\n%s",
			target,
			err,
			formatMsgAndArgs(msgAndArgs...),
		)
	}
}

func formatMsgAndArgs(msgAndArgs ...any) string {
	if len(msgAndArgs) == 0 {
		return ""
	}
	if format, ok := msgAndArgs[0].(string); ok && len(msgAndArgs) > 1 {
		return fmt.Sprintf(format, msgAndArgs[1:]...)
	}
	return fmt.Sprint(msgAndArgs...)
}
