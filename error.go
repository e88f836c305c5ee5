package oraexec

import (
	"errors"
	"fmt"
)

// Connection errors
var EmptyConStrErr = errors.New("connection string can't be blank")
var CantCreateConnErr = func(error string) error {
	return errors.New(fmt.Sprintf("connection could not be created [%s]", error))
}
var CantPingConnection = func(error string) error { return errors.New(fmt.Sprintf("ping test failed [%s]", error)) }

// Parameter validation errors, always wrapped in a *ValidationError
var (
	InvalidNameErr      = errors.New("parameter name must be set and can't start with ':'")
	DuplicateNameErr    = errors.New("parameter name declared more than once")
	UnknownDatatypeErr  = errors.New("unknown datatype")
	UnknownDirectionErr = errors.New("unknown direction")
	ExpandDirectionErr  = errors.New("in-list expansion is only valid for input parameters")
	ExpandCursorErr     = errors.New("cursor parameters can't be expanded as in-list")
	EmptyInListErr      = errors.New("in-list has no values")
	InputCursorErr      = errors.New("input parameters can't be cursors")
	InOutCursorErr      = errors.New("input/output parameters can't be cursors")
	InvalidNumberErr    = errors.New("value is not a valid number")
	InvalidDateErr      = errors.New("value is not a valid date")
)

// Execution errors
var (
	OutBindUnsupportedErr = errors.New("output binds are not supported by this executor")
	EmptyStatementErr     = errors.New("statement can't be blank")
)

var ExecutionErr = func(err error) error { return fmt.Errorf("statement execution failed [%w]", err) }
var CursorFetchErr = func(err error) error { return fmt.Errorf("cursor could not be fetched [%w]", err) }
var CursorCloseErr = func(err error) error { return fmt.Errorf("cursor could not be released [%w]", err) }

// ValidationError reports a descriptor that can't be compiled into a bind.
// Err is one of the parameter validation errors above.
type ValidationError struct {
	Param string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("parameter [%s]: %s [%s]", e.Param, e.Err.Error(), e.Value)
	}
	return fmt.Sprintf("parameter [%s]: %s", e.Param, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err was raised before the statement reached the database
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func invalid(param string, err error) error {
	return &ValidationError{Param: param, Err: err}
}

func invalidValue(param, value string, err error) error {
	return &ValidationError{Param: param, Value: value, Err: err}
}
