package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorType категория ошибки анализа
type ErrorType string

const (
	ErrorTypeInvalidInput       ErrorType = "invalid_input"
	ErrorTypeIoFailure          ErrorType = "io_failure"
	ErrorTypeBackendUnavailable ErrorType = "backend_unavailable"
	ErrorTypeNoDetections       ErrorType = "no_detections"
	ErrorTypeInternal           ErrorType = "internal"
)

// AppError типизированная ошибка анализа.
// Message попадает в диагностику задачи, Details хранит сопутствующий контекст
// (например, причину отказа основного бэкенда при неудачном фолбэке).
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Diagnostic возвращает текст для пользователя без технических префиксов.
func (e *AppError) Diagnostic() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Details)
	}
	return msg
}

// WithDetails добавляет контекст к ошибке и возвращает её же.
func (e *AppError) WithDetails(format string, args ...any) *AppError {
	e.Details = fmt.Sprintf(format, args...)
	return e
}

func NewInvalidInputError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInvalidInput, Message: message, Cause: cause}
}

func NewIoFailureError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeIoFailure, Message: message, Cause: cause}
}

func NewBackendUnavailableError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeBackendUnavailable, Message: message, Cause: cause}
}

func NewNoDetectionsError(message string) *AppError {
	return &AppError{Type: ErrorTypeNoDetections, Message: message}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{Type: ErrorTypeInternal, Message: message, Cause: cause}
}

// IsType проверяет, что в цепочке ошибок есть AppError нужного типа.
func IsType(err error, errorType ErrorType) bool {
	return TypeOf(err) == errorType
}

// TypeOf возвращает тип ошибки; для нетипизированных ошибок это internal.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// Diagnostic извлекает пользовательский текст из любой ошибки.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Diagnostic()
	}
	return err.Error()
}
