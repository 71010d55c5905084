package service

import (
	"strings"

	"github.com/catclicker/catclicker/internal/admission"
	"github.com/catclicker/catclicker/internal/ledger"
)

// Service errors.
var (
	ErrCountryNotFound = ledger.ErrCountryNotFound
	ErrClicksOverflow  = ledger.ErrClicksOverflow
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a click submission is malformed. No
// ledger mutation happens.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid request data: " + strings.Join(parts, "; ")
}

// Add records a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// DeniedError is returned when the admission policy blocks a submission.
type DeniedError struct {
	Decision admission.Decision
}

func (e *DeniedError) Error() string {
	return "clicks denied (" + string(e.Decision.Kind) + "): " + e.Decision.Reason
}
