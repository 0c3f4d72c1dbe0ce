// Package errors provides structured error types for cfnscope.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	ErrCodeMissingParameter    ErrorCode = "MISSING_REQUIRED_PARAMETER"
	ErrCodeConstraintViolation ErrorCode = "PARAMETER_CONSTRAINT_VIOLATION"
	ErrCodeLookupKeyNotFound   ErrorCode = "LOOKUP_KEY_NOT_FOUND"
	ErrCodeReference           ErrorCode = "REFERENCE_ERROR"
	ErrCodeConditionCycle      ErrorCode = "CONDITION_CYCLE"
	ErrCodeHookViolation       ErrorCode = "HOOK_VIOLATION"
	ErrCodeParse               ErrorCode = "PARSE_ERROR"
)

// Error is the base error type for cfnscope
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Wrap creates a new error wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a single detail to an error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// MissingParameter creates an error for a parameter with no value and no default.
func MissingParameter(name string) *Error {
	return &Error{
		Code:    ErrCodeMissingParameter,
		Message: fmt.Sprintf("parameter %q has no value and no default", name),
		Details: map[string]interface{}{"parameter": name},
	}
}

// ConstraintViolation creates an error for a parameter value that failed a
// declared constraint. The constraint is the template-facing name, e.g.
// "AllowedPattern" or "MinLength".
func ConstraintViolation(name, constraint string, value interface{}) *Error {
	return &Error{
		Code:    ErrCodeConstraintViolation,
		Message: fmt.Sprintf("parameter %q value %v violates constraint %s", name, value, constraint),
		Details: map[string]interface{}{
			"parameter":  name,
			"constraint": constraint,
			"value":      value,
		},
	}
}

// LookupKeyNotFound creates an error for a key absent from a lookup table.
func LookupKeyNotFound(table, key string) *Error {
	return &Error{
		Code:    ErrCodeLookupKeyNotFound,
		Message: fmt.Sprintf("key %q not found in lookup table %q", key, table),
		Details: map[string]interface{}{
			"table": table,
			"key":   key,
		},
	}
}

// Reference creates an error for an unknown logical id, condition name or
// out-of-range select index.
func Reference(message string) *Error {
	return New(ErrCodeReference, message)
}

// ConditionCycle creates an error for a self-referential condition chain.
func ConditionCycle(chain []string) *Error {
	return &Error{
		Code:    ErrCodeConditionCycle,
		Message: fmt.Sprintf("condition cycle detected: %v", chain),
		Details: map[string]interface{}{"chain": chain},
	}
}

// HookViolation creates an error for a failed hook check.
func HookViolation(hook string, cause error) *Error {
	return &Error{
		Code:    ErrCodeHookViolation,
		Message: fmt.Sprintf("hook %q failed", hook),
		Cause:   cause,
		Details: map[string]interface{}{"hook": hook},
	}
}

// ParseError creates a parse error for a template or parameter document.
func ParseError(source string, cause error) *Error {
	return &Error{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("failed to parse %s", source),
		Cause:   cause,
		Details: map[string]interface{}{"source": source},
	}
}
