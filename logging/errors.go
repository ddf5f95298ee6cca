package logging

import (
	"errors"
	"reflect"
)

type TypedError interface {
	error
	Type() string
}

// ContextError tags an error with the operation that produced it.
type ContextError struct {
	Op      string
	Err     error
	ErrType string
}

func (e *ContextError) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return e.Op + ": " + e.Err.Error()
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Op
	}
}

func (e *ContextError) Type() string {
	if e.ErrType != "" {
		return e.ErrType
	}
	return inferErrorType(e.Err)
}

func (e *ContextError) Unwrap() error {
	return e.Err
}

func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{Op: op, Err: err}
}

func WrapErrorWithType(op string, err error, errType string) error {
	if err == nil {
		return nil
	}
	return &ContextError{Op: op, Err: err, ErrType: errType}
}

// ErrorType names the most specific type found in err's chain.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	var typed TypedError
	if errors.As(err, &typed) {
		return typed.Type()
	}
	return inferErrorType(err)
}

func inferErrorType(err error) string {
	for err != nil {
		t := reflect.TypeOf(err)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}
		// skip fmt.Errorf wrappers so the cause names the type
		name := t.Name()
		next := errors.Unwrap(err)
		if (name != "wrapError" && name != "wrapErrors") || next == nil {
			return name
		}
		err = next
	}
	return ""
}
