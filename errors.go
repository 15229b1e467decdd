// Package hailopipe drives a fixed-function accelerator running YOLOv8
// instance segmentation through a four-stage asynchronous pipeline:
// Write, ReadAndJoin, PostProcess and Callback.
package hailopipe

import (
	"errors"
	"fmt"
)

// Code categorizes pipeline errors.
type Code string

const (
	// CodeModelLoad indicates the accelerator device could not be opened
	// or the model failed to load. Fatal to the pipeline; returned from Load.
	CodeModelLoad Code = "model load failed"
	// CodeInvalidInput indicates a bad Submit argument (ROI/size mismatch).
	CodeInvalidInput Code = "invalid input"
	// CodeAcceleratorIO indicates an accelerator stream error. Submit
	// returns it when the input-stream write fails. Reader threads log
	// output-stream read errors other than an abort and retry while
	// running; repeated errors do not stop the pipeline.
	CodeAcceleratorIO Code = "accelerator I/O error"
	// CodeCancelled marks a cancelled operation; cancellation is normal
	// shutdown, not a logged error.
	CodeCancelled Code = "cancelled"
	// CodeInvariantViolation names a broken pipeline invariant, e.g. the
	// read-join counter fired but write_ch was empty. The read-join stage
	// logs that condition and keeps running; it does not stop the
	// pipeline or return an error carrying this code.
	CodeInvariantViolation Code = "invariant violation"
)

// Error is a structured pipeline error with enough context to triage it
// without parsing a message string.
type Error struct {
	Op    string // operation that failed, e.g. "Load", "Submit", "ReadJoin"
	Stage string // pipeline stage, empty if not stage-specific
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	switch {
	case e.Op != "" && e.Stage != "":
		return fmt.Sprintf("hailopipe: %s (op=%s stage=%s)", msg, e.Op, e.Stage)
	case e.Op != "":
		return fmt.Sprintf("hailopipe: %s (op=%s)", msg, e.Op)
	default:
		return fmt.Sprintf("hailopipe: %s", msg)
	}
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is compares by Code, so callers can do errors.Is(err, &Error{Code: CodeCancelled}).
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	if te.Code == "" {
		return false
	}
	return e.Code == te.Code
}

// NewError creates a structured error.
func NewError(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewStageError creates a structured error attributed to a pipeline stage.
func NewStageError(op, stage string, code Code, msg string) *Error {
	return &Error{Op: op, Stage: stage, Code: code, Msg: msg}
}

// WrapError wraps inner with pipeline context, preserving its Code if inner
// is already a *Error.
func WrapError(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	if pe, ok := inner.(*Error); ok {
		return &Error{Op: op, Stage: pe.Stage, Code: pe.Code, Msg: pe.Msg, Inner: pe}
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err (or any error it wraps) carries the given Code.
func IsCode(err error, code Code) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// IsCancelled is a convenience wrapper for IsCode(err, CodeCancelled).
func IsCancelled(err error) bool {
	return IsCode(err, CodeCancelled)
}

// ErrCancelled is a CodeCancelled sentinel. The internal bchan channels
// do not return it: after Cancel() they return bchan.ErrCancelled, which
// the pipeline's workers treat as shutdown.
var ErrCancelled = &Error{Code: CodeCancelled, Msg: "channel operation cancelled"}
