package graph

import (
	"errors"
	"fmt"

	"github.com/roach88/stemma/internal/element"
)

// ErrorCode categorizes graph store errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates a missing node, path or project directory.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeNoProject indicates a directory without a state file.
	ErrCodeNoProject ErrorCode = "NO_PROJECT"

	// ErrCodeValidation indicates a malformed mutation, rejected before any change.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodePathCollision indicates two artifacts claiming the same file.
	ErrCodePathCollision ErrorCode = "PATH_COLLISION"

	// ErrCodeIntegrity indicates a violated cross-node invariant.
	ErrCodeIntegrity ErrorCode = "INTEGRITY"

	// ErrCodeCorrupt indicates an unreadable state file.
	ErrCodeCorrupt ErrorCode = "CORRUPT"
)

// Error is the typed error surfaced by the graph store and the components
// operating on it.
type Error struct {
	Code    ErrorCode
	Op      string
	Name    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("%s: %s: %s (%q)", e.Op, e.Code, msg, e.Name)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound builds an ErrCodeNotFound error.
func NotFound(op, name, message string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, Name: name, Message: message}
}

// Invalid builds an ErrCodeValidation error.
func Invalid(op, name, message string) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Name: name, Message: message}
}

func wrapValidation(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: ErrCodeValidation, Op: op, Name: name, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsNoProject reports whether err signals a directory without a project.
func IsNoProject(err error) bool { return hasCode(err, ErrCodeNoProject) }

// IsValidation reports whether err is a validation failure, including
// element-level validation errors.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation) || element.IsValidation(err)
}

// IsPathCollision reports whether err is a path collision.
func IsPathCollision(err error) bool { return hasCode(err, ErrCodePathCollision) }

// IsIntegrity reports whether err is an integrity violation.
func IsIntegrity(err error) bool { return hasCode(err, ErrCodeIntegrity) }
