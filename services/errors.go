package services

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable error identifier returned to API clients.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeNoQuestion       ErrorCode = "no_question"
	CodeNoExplanation    ErrorCode = "no_explanation"
	CodeInvalidState     ErrorCode = "invalid_state"
	CodeInvalidPayload   ErrorCode = "invalid_payload"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodeFlowConflict     ErrorCode = "flow_conflict"
	CodeNameTaken        ErrorCode = "name_taken"
	CodeUpdateFailed     ErrorCode = "update_failed"
	CodeFlowUpdateFailed ErrorCode = "flow_update_failed"
	CodeServerError      ErrorCode = "server_error"
)

// Error is the result of a failed game operation. Expected business
// conditions and infrastructure failures both surface as *Error, told
// apart by Code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func notFound(message string) *Error {
	return newError(CodeNotFound, message, nil)
}

func invalidState(message string) *Error {
	return newError(CodeInvalidState, message, nil)
}

func invalidPayload(message string) *Error {
	return newError(CodeInvalidPayload, message, nil)
}

// CodeOf returns the code of err, or CodeServerError for anything that is not an *Error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeServerError
}
