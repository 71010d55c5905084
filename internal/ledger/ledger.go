// Package ledger aggregates clicks per country, per session and globally,
// and keeps country ranks consistent with the totals.
package ledger

import (
	"errors"

	"github.com/catclicker/catclicker/internal/model"
)

// Sentinel errors.
var (
	ErrInvalidClicks      = errors.New("clicks must be a positive integer")
	ErrCountryNotFound    = errors.New("country not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidCountryCode = errors.New("invalid country code")
	ErrInvalidSessionID   = errors.New("invalid session id")
	ErrClicksOverflow     = errors.New("click total would overflow")
)

// Submission is one accepted click batch.
type Submission struct {
	CountryCode string
	CountryName string
	SessionID   string
	Clicks      int64
}

// Result is the ledger state observed right after a Submission was applied.
type Result struct {
	Country      model.Country
	Session      model.Session
	GlobalClicks int64
}

// Stats summarizes a session and its bound country.
type Stats struct {
	UserClicks    int64
	CountryClicks int64
	GlobalClicks  int64
	CountryRank   int
}

// State is a point-in-time copy of the whole ledger.
type State struct {
	Countries []model.Country // insertion order
	Sessions  []model.Session // ID order
}

// Ledger is the click aggregation contract.
type Ledger interface {
	GetOrCreateCountry(code, name string) (model.Country, error)
	GetOrCreateSession(sessionID, countryCode string) (model.Session, error)
	AddClicks(code string, n int64) (model.Country, error)
	AddSessionClicks(sessionID string, n int64) (model.Session, error)
	Record(sub Submission) (Result, error)

	Country(code string) (model.Country, error)
	Session(sessionID string) (model.Session, error)
	Stats(sessionID string) Stats
	GlobalClickCount() int64
	RankOf(code string) int
	TopCountries(limit int) []model.LeaderboardEntry
	CountryCount() int
}
