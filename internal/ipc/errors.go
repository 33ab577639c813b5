// Package ipc implements the local channel between the ghview host and the
// tool server: one newline-terminated JSON request and one newline-terminated
// JSON response per connection, over a unix socket or a windows named pipe.
package ipc

import "errors"

var (
	ErrHostNotRunning  = errors.New("ghview is not running. Please start ghview first")
	ErrNoResponse      = errors.New("no response from ghview")
	ErrInstanceRunning = errors.New("another ghview instance owns the endpoint")
	ErrRequestTooLarge = errors.New("request exceeds maximum line length")
)

// RemoteError is an application error reported by the host in the error
// field of a response.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}
