package service

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/catclicker/catclicker/internal/model"
)

// Validation limits.
const (
	// CountryCodeLength is the exact length of an ISO 3166-1 alpha-2 code.
	CountryCodeLength = 2

	// MaxCountryNameLength bounds the stored display name.
	MaxCountryNameLength = 100

	// MaxSessionIDLength bounds client-supplied session ids.
	MaxSessionIDLength = 128

	// MaxClicksPerBatch bounds one submission. Clients flush every few
	// seconds, so anything larger is not a human batch.
	MaxClicksPerBatch = 10_000
)

const (
	msgCodeLength    = "must be exactly 2 characters"
	msgCodeLetters   = "must be a 2-letter country code"
	msgRequired      = "is required"
	msgTooLong       = "is too long"
	msgControlChars  = "contains invalid characters"
	msgPositiveClick = "must be a positive integer"
	msgClicksTooHigh = "is too large"
)

// validateSubmit checks the shape of a submission and returns every field
// failure at once, or nil.
func validateSubmit(in SubmitInput) *ValidationError {
	verr := &ValidationError{}

	switch {
	case utf8.RuneCountInString(in.CountryCode) != CountryCodeLength:
		verr.Add("countryCode", msgCodeLength)
	case !model.IsCountryCode(strings.ToUpper(in.CountryCode)):
		verr.Add("countryCode", msgCodeLetters)
	}

	switch {
	case in.CountryName == "":
		verr.Add("countryName", msgRequired)
	case utf8.RuneCountInString(in.CountryName) > MaxCountryNameLength:
		verr.Add("countryName", msgTooLong)
	}

	switch {
	case math.IsNaN(in.Clicks) || in.Clicks <= 0 || in.Clicks != math.Trunc(in.Clicks):
		verr.Add("clicks", msgPositiveClick)
	case in.Clicks > MaxClicksPerBatch:
		verr.Add("clicks", msgClicksTooHigh)
	}

	switch {
	case in.SessionID == "":
		verr.Add("sessionId", msgRequired)
	case len(in.SessionID) > MaxSessionIDLength:
		verr.Add("sessionId", msgTooLong)
	case strings.IndexFunc(in.SessionID, unicode.IsControl) >= 0:
		verr.Add("sessionId", msgControlChars)
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}
