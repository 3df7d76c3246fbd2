// Package apierr defines the small, fixed taxonomy of errors the sync
// server can return, decoupled from how they are ultimately written to
// the wire. Handlers return one of these (wrapped with context via
// fmt.Errorf("...: %w", ...) as needed); a single adapter in pkg/server
// translates them into a status code and the uniform message text.
package apierr

import "errors"

// Error is a request-facing error: a fixed HTTP status and a message that
// is safe to show to the caller verbatim.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// New builds an Error with the given status and message.
func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// As reports whether err (or something it wraps) is an *Error, and if so
// returns it. This is a thin convenience over errors.As so callers in
// pkg/server don't have to spell out the target type at every call site.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
