package spec

import "errors"

// ErrorCode categorizes loader errors for clearer handling and messaging.
type ErrorCode string

const (
	InputError          ErrorCode = "InputError"
	NetworkError        ErrorCode = "NetworkError"
	MalformedSpec       ErrorCode = "MalformedSpec"
	UnresolvedReference ErrorCode = "UnresolvedReference"
	ValidationError     ErrorCode = "ValidationError"
	ConversionError     ErrorCode = "ConversionError"
)

// Sentinels matched by SpecError.Is.
var (
	ErrMalformedSpec       = errors.New("malformed spec")
	ErrUnresolvedReference = errors.New("unresolved reference")
)

// SpecError is a structured error with optional location and JSON Pointer.
type SpecError struct {
	Code        ErrorCode
	Message     string
	Location    string // file path or URL
	JSONPointer string // e.g. "#/paths/~1pets/get"
	Cause       error
}

func (e *SpecError) Error() string { return e.Message }
func (e *SpecError) Unwrap() error { return e.Cause }

// Is reports whether target is the sentinel for this error's code.
func (e *SpecError) Is(target error) bool {
	switch target {
	case ErrMalformedSpec:
		return e.Code == MalformedSpec
	case ErrUnresolvedReference:
		return e.Code == UnresolvedReference
	}
	return false
}

func malformed(location, pointer, msg string, cause error) *SpecError {
	return &SpecError{Code: MalformedSpec, Message: "spec: " + msg, Location: location, JSONPointer: pointer, Cause: cause}
}
