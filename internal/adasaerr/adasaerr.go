// Package adasaerr defines the error taxonomy carried across the control
// channel (spec section 7). Every kind wraps a contextual message and
// supports errors.Is against its sentinel so callers can branch on kind
// without string matching.
package adasaerr

import "fmt"

type Kind string

const (
	NotFound             Kind = "NotFound"
	AlreadyExists        Kind = "AlreadyExists"
	ConfigInvalid        Kind = "ConfigInvalid"
	ConfigMissingField   Kind = "ConfigMissingField"
	SpawnError           Kind = "SpawnError"
	StopError            Kind = "StopError"
	RestartLimitExceeded Kind = "RestartLimitExceeded"
	RestartError         Kind = "RestartError"
	ResourceLimitError   Kind = "ResourceLimitError"
	IpcError             Kind = "IpcError"
	ProtocolError        Kind = "ProtocolError"
	Serialization        Kind = "Serialization"
	StateError           Kind = "StateError"
	Unimplemented        Kind = "Unimplemented"
)

// Error is a typed domain error: a Kind plus a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

// Is allows errors.Is(err, adasaerr.Sentinel(adasaerr.NotFound)) style
// comparisons: any *Error target with the same Kind matches, whatever its
// message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Sentinel returns a zero-message error usable as an errors.Is target, e.g.
// errors.Is(err, adasaerr.Sentinel(adasaerr.NotFound)).
func Sentinel(k Kind) *Error { return &Error{Kind: k} }
