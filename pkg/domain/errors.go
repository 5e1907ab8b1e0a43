package domain

import "errors"

// ErrorKind classifies request failures so the HTTP layer can map them to
// status codes without string matching.
type ErrorKind string

const (
	// KindValidation covers malformed input; surfaced as 400 and never retried.
	KindValidation ErrorKind = "VALIDATION"
	// KindConfiguration covers bad credentials or an inaccessible bucket; fatal
	// for the whole request, every upload would fail identically.
	KindConfiguration ErrorKind = "CONFIGURATION"
	// KindAgentFailure covers the external automation crashing or exceeding its
	// time budget. Retry policy belongs to the collaborator, not this service.
	KindAgentFailure ErrorKind = "AGENT_FAILURE"
	// KindObjectWrite covers a single failed upload; recorded per artifact and
	// never aborts the batch.
	KindObjectWrite ErrorKind = "OBJECT_WRITE"
	// KindIO covers local filesystem problems with the scratch directory.
	KindIO ErrorKind = "IO"
)

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from err, defaulting to KindAgentFailure for
// untyped errors escaping the pipeline.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindAgentFailure
}
