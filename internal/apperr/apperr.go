// Package apperr defines the closed set of failure kinds the pipeline can
// report and the single error type that carries them.
package apperr

import (
	"errors"
	"fmt"
)

// Code identifies one failure kind. The zero value is not a valid code.
type Code string

const (
	PromptNotFound        Code = "PROMPT_NOT_FOUND"
	PDFProcessingError    Code = "PDF_PROCESSING_ERROR"
	APICommunicationError Code = "API_COMMUNICATION_ERROR"
	InvalidResponse       Code = "INVALID_RESPONSE"
	StreamProcessingError Code = "STREAM_PROCESSING_ERROR"
	ConfigurationError    Code = "CONFIGURATION_ERROR"
)

type codeInfo struct {
	id          string
	description string
}

var codes = map[Code]codeInfo{
	PromptNotFound:        {"DEEP_001", "Prompt file or configuration not found"},
	PDFProcessingError:    {"DEEP_002", "Error processing PDF document"},
	APICommunicationError: {"DEEP_003", "Error communicating with Deepseek API"},
	InvalidResponse:       {"DEEP_004", "Invalid response from Deepseek API"},
	StreamProcessingError: {"DEEP_005", "Error during stream processing"},
	ConfigurationError:    {"DEEP_006", "Invalid configuration"},
}

// Codes lists every known code in declaration order.
func Codes() []Code {
	return []Code{
		PromptNotFound,
		PDFProcessingError,
		APICommunicationError,
		InvalidResponse,
		StreamProcessingError,
		ConfigurationError,
	}
}

// ID returns the stable identifier, e.g. "DEEP_003".
func (c Code) ID() string {
	return codes[c].id
}

// Description returns the human readable summary of the code.
func (c Code) Description() string {
	return codes[c].description
}

// Valid reports whether c is one of the declared codes.
func (c Code) Valid() bool {
	_, ok := codes[c]
	return ok
}

// Error is returned by every component that classifies failures.
type Error struct {
	Code    Code
	Message string
	Details string
	Cause   error
}

// New builds an Error without an underlying cause.
func New(code Code, message, details string) *Error {
	return &Error{Code: code, Message: message, Details: details}
}

// Wrap builds an Error that chains cause. Details default to the cause text.
func Wrap(code Code, message string, cause error) *Error {
	e := &Error{Code: code, Message: message, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code.ID(), e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// CodeOf returns the code of the first *Error in err's chain, or "" when
// there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
