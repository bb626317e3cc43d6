// Package errors defines the closed vocabulary of error codes that cross
// the core's external boundary (CLI, diagnostics, verify output), plus a
// CodedError wrapper carrying per-file context.
package errors

import (
	"fmt"
	"time"
)

// Code is the closed error vocabulary from the design's error handling
// section. Internal propagation is free-form error wrapping; only
// boundary-facing errors are required to carry one of these.
type Code string

const (
	// Path errors (Path Validator, §4.1)
	CodePathNotFound          Code = "PATH_NOT_FOUND"
	CodePathOutsideRoot       Code = "PATH_OUTSIDE_ROOT"
	CodePathSuspiciousTraversal Code = "PATH_SUSPICIOUS_TRAVERSAL"
	CodePathSymlinkEscape     Code = "PATH_SYMLINK_ESCAPE"
	CodeCannotCanonicalize    Code = "CANNOT_CANONICALIZE"

	// IO errors
	CodeFileUnreadable            Code = "FILE_UNREADABLE"
	CodeFileDisappearedMidReconcile Code = "FILE_DISAPPEARED_MID_RECONCILE"

	// Parse errors
	CodeParseFailed Code = "PARSE_FAILED"

	// Schema errors
	CodeDBVersionMismatch Code = "DB_VERSION_MISMATCH"

	// Validation errors
	CodeOrphanReference      Code = "ORPHAN_REFERENCE"
	CodeOrphanCallNoCaller   Code = "ORPHAN_CALL_NO_CALLER"
	CodeOrphanCallNoCallee   Code = "ORPHAN_CALL_NO_CALLEE"
	CodeDefinesMissing       Code = "DEFINES_MISSING"
	CodeKVInconsistent       Code = "KV_INCONSISTENT"

	// Concurrency
	CodeStoreBusy Code = "STORE_BUSY"
)

// CodedError is the error shape that crosses the core boundary: a
// closed code, the file it concerns (if any), and the underlying cause.
type CodedError struct {
	Code       Code
	File       string
	Stage      string
	Underlying error
	Timestamp  time.Time
}

// New creates a CodedError for the given code and stage, wrapping err.
func New(code Code, stage string, err error) *CodedError {
	return &CodedError{Code: code, Stage: stage, Underlying: err, Timestamp: time.Now()}
}

// WithFile attaches the offending path to the error.
func (e *CodedError) WithFile(path string) *CodedError {
	e.File = path
	return e
}

func (e *CodedError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Code, e.Stage, e.File, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Code, e.Stage, e.Underlying)
}

func (e *CodedError) Unwrap() error { return e.Underlying }

// Diagnostic is the stable per-file shape emitted for skipped or
// erroring files (§4.11).
type Diagnostic struct {
	File    string `json:"file"`
	Stage   string `json:"stage"`
	Reason  Code   `json:"reason"`
	Details string `json:"details"`
}

// FromCodedError converts a CodedError into its wire Diagnostic shape.
func FromCodedError(err *CodedError) Diagnostic {
	details := ""
	if err.Underlying != nil {
		details = err.Underlying.Error()
	}
	return Diagnostic{File: err.File, Stage: err.Stage, Reason: err.Code, Details: details}
}

// MultiError aggregates independent diagnostics from a batch operation
// (e.g. a scan or a flush) without halting the pipeline on the first one.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred, first: %v", len(e.Errors), e.Errors[0])
}

func (e *MultiError) Unwrap() []error { return e.Errors }
