package kernel

import "fmt"

// ErrorKind classifies the outcome of a failed update-engine operation. It
// lets callers (the dispatcher, tests) branch on *why* an operation failed
// without string-matching Message.
type ErrorKind uint8

const (
	// ErrNone is the zero value; it is never attached to an *Error actually
	// returned to a caller.
	ErrNone ErrorKind = iota
	ErrOutOfRange
	ErrWrongDomain
	ErrWrongType
	ErrTypeConflict
	ErrForbiddenBits
	ErrAlreadyPinned
	ErrNotPinned
	ErrHypervisorAreaViolation
	ErrPrivilegeRequired
	ErrUnknownCommand
	// ErrInternal guards an invariant the caller is expected to have
	// already established; seeing it means a defensive assert tripped.
	ErrInternal
)

var errorKindNames = [...]string{
	ErrNone:                    "none",
	ErrOutOfRange:              "out of range",
	ErrWrongDomain:             "wrong domain",
	ErrWrongType:               "wrong type",
	ErrTypeConflict:            "type conflict",
	ErrForbiddenBits:           "forbidden bits",
	ErrAlreadyPinned:           "already pinned",
	ErrNotPinned:               "not pinned",
	ErrHypervisorAreaViolation: "hypervisor area violation",
	ErrPrivilegeRequired:       "privilege required",
	ErrUnknownCommand:          "unknown command",
	ErrInternal:                "internal",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) {
		return errorKindNames[k]
	}
	return "unknown"
}

// Error describes an error raised by the update engine. All errors are
// defined as values of this structure rather than produced via errors.New,
// following the kernel package's own convention of keeping error values
// self-describing structs instead of opaque strings.
type Error struct {
	// Module is the package that raised the error.
	Module string

	// Kind classifies the failure; see ErrorKind.
	Kind ErrorKind

	// Message is a human-readable diagnostic.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Module, e.Kind, e.Message)
}

// New builds an *Error for the given module and kind.
func New(module string, kind ErrorKind, message string) *Error {
	return &Error{Module: module, Kind: kind, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting of the message.
func Newf(module string, kind ErrorKind, format string, args ...interface{}) *Error {
	return New(module, kind, fmt.Sprintf(format, args...))
}
