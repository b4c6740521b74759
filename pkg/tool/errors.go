package tool

import (
	"errors"
	"fmt"
)

// ErrDocMismatch is returned when the documented arguments do not match the
// declared parameters.
var ErrDocMismatch = errors.New("documented arguments do not match parameters")

// NameError reports a tool or parameter name that is not an identifier.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("invalid tool name %q: must match %s", e.Name, identPattern.String())
}

// SignatureError reports a parameter that cannot be expressed in the call
// grammar the model uses.
type SignatureError struct {
	Tool  string
	Param string
	Msg   string
}

func (e *SignatureError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("tool %s: %s", e.Tool, e.Msg)
	}
	return fmt.Sprintf("tool %s: parameter %s: %s", e.Tool, e.Param, e.Msg)
}

// ModelErrorKind separates values of the wrong type from text that is not a
// value at all.
type ModelErrorKind string

const (
	KindType  ModelErrorKind = "type"
	KindValue ModelErrorKind = "value"
)

// ModelError marks a failure caused by what the model produced rather than by
// the caller.
type ModelError struct {
	Kind ModelErrorKind
	Msg  string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("%s error (caused by LLM): %s", e.Kind, e.Msg)
}

func modelErrorf(kind ModelErrorKind, format string, args ...any) error {
	return &ModelError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// IsModelError reports whether err (or any error it wraps) is a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}
