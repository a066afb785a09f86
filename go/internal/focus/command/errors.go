package command

import (
	"errors"
	"fmt"
)

// ErrLogicalFailure marks an envelope that reported failure with a 2xx status.
var ErrLogicalFailure = errors.New("request reported failure")

// RequestError is returned for every failed backend call, whether the transport failed,
// the status code was not 2xx, or the envelope carried success=false / error=true.
type RequestError struct {
	Op      string // e.g. "stop session"
	Status  int    // HTTP status, 0 when no response was received
	Code    string // backend error_code, when provided
	Message string // backend message or detail, when provided
	Err     error
}

func (e *RequestError) Error() string {
	msg := e.Op
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Code)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
