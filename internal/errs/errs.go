// Package errs provides the orchestrator's error taxonomy (spec §7): a
// small set of typed errors, each carrying an HTTP status, so the API
// surface can translate any orchestrator-layer failure into a response
// without the orchestrator importing net/http itself.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one of the taxonomy's error kinds.
type Code string

const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeUnsafePath      Code = "UNSAFE_PATH"
	CodeNotFound        Code = "NOT_FOUND"
	CodeAlreadyRunning  Code = "ALREADY_RUNNING"
	CodeSpawnFailure    Code = "SPAWN_FAILURE"
	CodeParseFailure    Code = "PARSE_FAILURE"
	CodeGitFailure      Code = "GIT_FAILURE"
	CodeTransient       Code = "TRANSIENT"
	CodeFatal           Code = "FATAL"
	CodeInternal        Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	CodeInvalidInput:   http.StatusBadRequest,
	CodeUnsafePath:     http.StatusForbidden,
	CodeNotFound:       http.StatusNotFound,
	CodeAlreadyRunning: http.StatusConflict,
	CodeSpawnFailure:   http.StatusInternalServerError,
	CodeParseFailure:   http.StatusInternalServerError,
	CodeGitFailure:     http.StatusInternalServerError,
	CodeTransient:      http.StatusServiceUnavailable,
	CodeFatal:          http.StatusInternalServerError,
	CodeInternal:       http.StatusInternalServerError,
}

// Error is a taxonomy error: a Code, a human message, and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus returns the status code the API surface should respond
// with for this error.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

func new_(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func InvalidInput(message string) *Error              { return new_(CodeInvalidInput, message, nil) }
func UnsafePath(path string) *Error {
	return new_(CodeUnsafePath, fmt.Sprintf("path %q is outside the allowed sandbox", path), nil)
}
func NotFound(resource, id string) *Error {
	return new_(CodeNotFound, fmt.Sprintf("%s %q not found", resource, id), nil)
}
func AlreadyRunning(projectID string) *Error {
	return new_(CodeAlreadyRunning, fmt.Sprintf("project %q already has a running agent", projectID), nil)
}
func SpawnFailure(message string, err error) *Error { return new_(CodeSpawnFailure, message, err) }
func ParseFailure(message string, err error) *Error { return new_(CodeParseFailure, message, err) }
func GitFailure(message string, err error) *Error   { return new_(CodeGitFailure, message, err) }
func Transient(message string, err error) *Error    { return new_(CodeTransient, message, err) }
func Fatal(message string, err error) *Error        { return new_(CodeFatal, message, err) }
func Internal(message string, err error) *Error     { return new_(CodeInternal, message, err) }

// Is reports whether err is a taxonomy Error with the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// StatusOf returns the HTTP status that should represent err: the
// taxonomy status if err is a *Error, or 500 otherwise.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}
