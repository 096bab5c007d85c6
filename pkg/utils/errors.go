package utils

import "fmt"

type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Details  string `json:"details,omitempty"`
	ExitCode int    `json:"exitCode,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Details)
	}
	return e.Message
}

const (
	CodeSync       = 2001
	CodeRun        = 2002
	CodeFetch      = 2003
	CodeTerminate  = 2004
	CodeValidation = 3001
	CodeTool       = 4001
	CodeSystem     = 5001
)

// NewStepError reports a ggp step that exited with a non-zero status.
func NewStepError(step string, exitCode int) *APIError {
	code := CodeSystem
	switch step {
	case "sync":
		code = CodeSync
	case "run", "run-headless":
		code = CodeRun
	case "fetch":
		code = CodeFetch
	case "terminate":
		code = CodeTerminate
	}
	return &APIError{
		Code:     code,
		Message:  fmt.Sprintf("step %s failed", step),
		Details:  fmt.Sprintf("ggp exited with status %d", exitCode),
		ExitCode: exitCode,
	}
}

func NewValidationError(field string, value interface{}) *APIError {
	return &APIError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("invalid parameter: %s", field),
		Details: fmt.Sprintf("invalid value: %v", value),
	}
}

func NewToolError(operation string, err error) *APIError {
	return &APIError{
		Code:    CodeTool,
		Message: fmt.Sprintf("ggp %s could not be started", operation),
		Details: err.Error(),
	}
}

func NewSystemError(err error) *APIError {
	return &APIError{
		Code:    CodeSystem,
		Message: "system error",
		Details: err.Error(),
	}
}
