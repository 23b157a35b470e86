package kernel

import (
	"strings"
	"testing"
)

func TestKernelError(t *testing.T) {
	err := &Error{
		Module:  "foo",
		Kind:    ErrWrongType,
		Message: "error message",
	}

	got := err.Error()
	for _, want := range []string{err.Module, err.Kind.String(), err.Message} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected err.Error() %q to contain %q", got, want)
		}
	}
}

func TestErrorKindString(t *testing.T) {
	if got := ErrAlreadyPinned.String(); got != "already pinned" {
		t.Errorf("expected %q; got %q", "already pinned", got)
	}
	if got := ErrorKind(255).String(); got != "unknown" {
		t.Errorf("expected out-of-range kind to stringify to %q; got %q", "unknown", got)
	}
}
