package errors

import "strings"

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewValidationErrors folds field errors into one validation AppError.
// The field list is exposed to clients through the "errors" context key.
func NewValidationErrors(fields []ValidationError) *AppError {
	messages := make([]string, 0, len(fields))
	for _, f := range fields {
		messages = append(messages, f.Field+": "+f.Message)
	}
	return NewAppValidationError(strings.Join(messages, "; ")).
		WithContext("errors", fields)
}
