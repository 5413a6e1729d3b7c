package server

import (
	"errors"
	"fmt"
)

type Error struct {
	orig error
	msg  string
	code error
}

func (e *Error) Error() string {
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}

	return e.msg
}

func (e *Error) Unwrap() error {
	return e.orig
}

// Is lets errors.Is(err, ErrInput) match on the error code.
func (e *Error) Is(target error) bool {
	return e.code != nil && e.code == target
}

func WrapErrorf(orig error, code error, format string, a ...interface{}) error {
	return &Error{
		code: code,
		orig: orig,
		msg:  fmt.Sprintf(format, a...),
	}
}

func (e *Error) Code() error {
	return e.code
}

// Message returns the message without the wrapped cause.
func (e *Error) Message() string {
	return e.msg
}

var (
	// ErrInput the trace or request payload is empty or malformed.
	ErrInput = errors.New("invalid input")
	// ErrGraphLoad the road network could not be read.
	ErrGraphLoad = errors.New("graph could not be loaded")
	// ErrGraphSave the road network could not be written.
	ErrGraphSave = errors.New("graph could not be saved")
	// ErrProcessing a pipeline stage produced nothing usable.
	ErrProcessing = errors.New("processing failed")
	// ErrInternalServerError will throw if any the Internal Server Error happen
	ErrInternalServerError = errors.New("internal Server Error")
	// ErrNotFound will throw if the requested item is not exists
	ErrNotFound = errors.New("your requested Item is not found")
	// ErrBadParamInput will throw if the given request-body or params is not valid
	ErrBadParamInput = errors.New("given Param is not valid")
)

var MessageInternalServerError string = "internal server error"
