package errors

import (
	"errors"
	"strings"
)

// Error kinds raised by the worker. Concrete errors wrap one of these with Wrap
// so callers can match on the kind with errors.Is and still see the cause.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrConnect         = errors.New("connect failed")
	ErrDecode          = errors.New("malformed payload")
	ErrConnectionLost  = errors.New("connection lost")
	ErrUnexpectedReply = errors.New("unexpected server reply")
	ErrUnrecoverable   = errors.New("unrecoverable worker error")
)

// Wrap adds context to an existing error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return errors.Join(errors.New(message), err)
}

// Kind joins err under the given kind so that errors.Is(result, kind) holds.
func Kind(kind, err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(kind, err)
}

// MissingFieldsError reports every required configuration field that was not set.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing required configuration: " + strings.Join(e.Fields, ", ")
}

// Is makes a MissingFieldsError match ErrConfiguration.
func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrConfiguration
}
