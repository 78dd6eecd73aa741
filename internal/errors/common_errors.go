package errors

import (
	"errors"
	"fmt"
)

// Sentinels carried in the Cause chain of the matching AppError types
var (
	ErrDirectoryUnreadable = errors.New("input directory unreadable")
	ErrDocumentDecode      = errors.New("document decode failure")
	ErrSinkWrite           = errors.New("sink write failure")
	ErrSchemaMismatch      = errors.New("schema mismatch")
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeDirectory  ErrorType = "DIRECTORY"
	ErrTypeDecode     ErrorType = "DECODE"
	ErrTypeSink       ErrorType = "SINK"
	ErrTypeSchema     ErrorType = "SCHEMA"
	ErrTypeStorage    ErrorType = "STORAGE"
	ErrTypeValidation ErrorType = "VALIDATION"
	ErrTypeNotFound   ErrorType = "NOT_FOUND"
	ErrTypeConfig     ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// TypeOf returns the ErrorType of the first AppError in err's chain
func TypeOf(err error) (ErrorType, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type, true
	}
	return "", false
}

// IsType reports whether err carries an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// NewDirectoryError creates an error for an input directory that cannot be listed
func NewDirectoryError(dir string, cause error) *AppError {
	return NewAppError(ErrTypeDirectory, "cannot list input directory", cause).
		WithContext("dir", dir)
}

// NewDecodeError creates an error for a document that cannot be decoded
func NewDecodeError(path string, cause error) *AppError {
	return NewAppError(ErrTypeDecode, "cannot decode document", cause).
		WithContext("path", path)
}

// NewSinkError creates an error for a failed write to the output sink
func NewSinkError(message string, cause error) *AppError {
	return NewAppError(ErrTypeSink, message, cause)
}

// NewSchemaError creates an error for a document whose width differs from the run header
func NewSchemaError(path string, want, got int, cause error) *AppError {
	return NewAppError(ErrTypeSchema,
		fmt.Sprintf("document has %d fields per record, header has %d", got, want), cause).
		WithContext("path", path)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
