package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/stemma/internal/engine"
	"github.com/roach88/stemma/internal/graph"
	"github.com/roach88/stemma/internal/uid"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // integrity violations, identity mismatch, interrupted
	ExitCommandError = 2 // bad arguments, missing project or node
)

// Error codes for CLI responses.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeValidation       = "E002" // Rejected request
	ErrCodePathCollision    = "E003" // Two artifacts claim one file
	ErrCodeIntegrity        = "E004" // Graph invariant violated
	ErrCodeNotFound         = "E005" // Missing node, file or project directory
	ErrCodeNoProject        = "E006" // Directory holds no project
	ErrCodeIdentityMismatch = "E007" // Stored UID differs from loaded weights
	ErrCodeUnsupported      = "E008" // Backend cannot do what was asked
	ErrCodeCanceled         = "E009" // Interrupted
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// NewExitError returns an ExitError without a cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError returns an ExitError wrapping err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns the exit code carried by err, or ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error to its response code and exit code.
func classify(err error) (string, int) {
	var mismatch *uid.MismatchError
	switch {
	case errors.As(err, &mismatch):
		return ErrCodeIdentityMismatch, ExitFailure
	case graph.IsIntegrity(err):
		return ErrCodeIntegrity, ExitFailure
	case graph.IsNoProject(err):
		return ErrCodeNoProject, ExitCommandError
	case graph.IsNotFound(err):
		return ErrCodeNotFound, ExitCommandError
	case graph.IsPathCollision(err):
		return ErrCodePathCollision, ExitCommandError
	case graph.IsValidation(err):
		return ErrCodeValidation, ExitCommandError
	case errors.Is(err, engine.ErrGenerationUnsupported), errors.Is(err, engine.ErrNotLoaded):
		return ErrCodeUnsupported, ExitCommandError
	case errors.Is(err, context.Canceled):
		return ErrCodeCanceled, ExitFailure
	default:
		return ErrCodeGeneric, ExitCommandError
	}
}

// errorDetails pulls the structured fields of typed errors.
func errorDetails(err error) map[string]string {
	details := map[string]string{}
	var gerr *graph.Error
	if errors.As(err, &gerr) {
		details["op"] = gerr.Op
		if gerr.Name != "" {
			details["node"] = gerr.Name
		}
	}
	var mismatch *uid.MismatchError
	if errors.As(err, &mismatch) {
		details["model"] = mismatch.Name
		details["stored"] = mismatch.Stored.UID
		details["computed"] = mismatch.Computed.UID
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// fail reports err through the formatter and returns the matching
// ExitError.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	if outErr := f.Error(code, err.Error(), errorDetails(err)); outErr != nil {
		return outErr
	}
	return WrapExitError(exit, code+": "+message, err)
}
