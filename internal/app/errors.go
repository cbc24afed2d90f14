package app

import "errors"

// Kind tags a business-rule failure so the HTTP layer can map it to a
// status code without inspecting message text.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindDependency
)

// Error is a tagged business-rule failure. Message is safe to show to
// clients; the internal cause, if any, stays in Err and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ValidationError marks missing or malformed input.
func ValidationError(message string) *Error { return newError(KindValidation, message) }

// AuthenticationError marks bad credentials or an unusable token.
func AuthenticationError(message string) *Error { return newError(KindAuthentication, message) }

// AuthorizationError marks a role, ownership, consent, or assignment violation.
func AuthorizationError(message string) *Error { return newError(KindAuthorization, message) }

// NotFoundError marks an absent referenced entity.
func NotFoundError(message string) *Error { return newError(KindNotFound, message) }

// ConflictError marks a uniqueness violation.
func ConflictError(message string) *Error { return newError(KindConflict, message) }

// DependencyError marks a failed external collaborator call.
func DependencyError(message string, cause error) *Error {
	return &Error{Kind: KindDependency, Message: message, Err: cause}
}

// KindOf extracts the failure kind, or 0 when err is not a tagged error.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return 0
}
