package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidDuration indicates a duration string that does not parse.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrValidationFailed indicates a value outside its allowed range.
	ErrValidationFailed = errors.New("validation failed")
)

// ParseError represents an error while parsing a configuration file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError represents a setting that failed validation.
type ValidationError struct {
	// Field is the dotted setting name.
	Field string
	// Message describes the problem.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns ErrValidationFailed and the underlying error.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidationFailed, e.Err}
	}
	return []error{ErrValidationFailed}
}

// EnvError represents an environment variable with an unusable value.
type EnvError struct {
	// Var is the environment variable name.
	Var string
	// Value is the offending value.
	Value string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *EnvError) Error() string {
	return fmt.Sprintf("environment %s=%q: %v", e.Var, e.Value, e.Err)
}

// Unwrap returns the underlying error.
func (e *EnvError) Unwrap() error {
	return e.Err
}
