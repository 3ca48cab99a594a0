// Package lib provides shared utilities like error handling and logging.
package lib

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Error codes, one per failure domain.
const (
	ErrCodeConfig      = "CONFIG_ERROR"
	ErrCodeUsage       = "USAGE_ERROR"
	ErrCodeCredentials = "CREDENTIALS_ERROR"
	ErrCodeRefresh     = "REFRESH_ERROR"
	ErrCodeState       = "STATE_ERROR"
	ErrCodeNotify      = "NOTIFY_ERROR"
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeSystem      = "SYSTEM_ERROR"
	ErrCodeTemplate    = "TEMPLATE_ERROR"
)

// AppError is an error tagged with a code, the package that raised it and
// optional fields for log lines.
type AppError struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Component string                 `json:"component"`
	Function  string                 `json:"function"`
	Caller    string                 `json:"caller"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// newAppError must be called directly from an exported constructor so
// the recorded caller is the constructor's caller.
func newAppError(code, message string, cause error) *AppError {
	e := &AppError{Code: code, Message: message, Cause: cause, Component: "unknown"}
	if pc, file, line, ok := runtime.Caller(2); ok {
		e.Component = componentOf(file)
		e.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.Function = fn.Name()
		}
	}
	return e
}

// componentOf returns the package directory under src/, e.g. "services".
func componentOf(file string) string {
	_, rest, ok := strings.Cut(filepath.ToSlash(file), "/src/")
	if !ok {
		return "unknown"
	}
	if dir, _, found := strings.Cut(rest, "/"); found && dir != "" {
		return dir
	}
	return "unknown"
}

// WrapError wraps err with a code and message. A nil err stays nil.
func WrapError(err error, code, message string) *AppError {
	if err == nil {
		return nil
	}
	return newAppError(code, message, err)
}

// WithContext attaches one log field.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithFields attaches several log fields.
func (e *AppError) WithFields(fields map[string]interface{}) *AppError {
	for k, v := range fields {
		e.WithContext(k, v)
	}
	return e
}

// CredentialsError reports an unusable credentials file.
func CredentialsError(message string) *AppError {
	return newAppError(ErrCodeCredentials, message, nil)
}

// RefreshError reports a failed token exchange.
func RefreshError(message string) *AppError {
	return newAppError(ErrCodeRefresh, message, nil)
}

// NotifyError reports an alert that could not be delivered.
func NotifyError(message string) *AppError {
	return newAppError(ErrCodeNotify, message, nil)
}

// ValidationError reports an invalid configuration value.
func ValidationError(message string) *AppError {
	return newAppError(ErrCodeValidation, message, nil)
}

// SystemError reports an unexpected internal failure.
func SystemError(message string) *AppError {
	return newAppError(ErrCodeSystem, message, nil)
}

// TemplateError reports an unusable alert template.
func TemplateError(message string) *AppError {
	return newAppError(ErrCodeTemplate, message, nil)
}

// IsErrorCode reports whether any AppError in err's chain has code.
func IsErrorCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// ErrorFields flattens err into logger fields: "error", plus "code" and the
// attached context when err carries an AppError.
func ErrorFields(err error) map[string]interface{} {
	if err == nil {
		return map[string]interface{}{}
	}
	fields := make(map[string]interface{})
	var appErr *AppError
	if errors.As(err, &appErr) {
		for k, v := range appErr.Context {
			fields[k] = v
		}
		fields["code"] = appErr.Code
	}
	fields["error"] = err.Error()
	return fields
}
