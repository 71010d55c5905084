// Package model defines domain entities for the application.
package model

import "strings"

// Country represents one nation's aggregate click state.
type Country struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"` // ISO 3166-1 alpha-2, upper-case
	Name   string `json:"name"`
	Clicks int64  `json:"clicks"`
	Rank   *int   `json:"rank"` // nil until the first rank computation
}

// RankOrZero returns the stored rank, or 0 when none has been computed.
func (c Country) RankOrZero() int {
	if c.Rank == nil {
		return 0
	}
	return *c.Rank
}

// Clone returns a deep copy so callers never share the rank pointer.
func (c Country) Clone() Country {
	if c.Rank != nil {
		rank := *c.Rank
		c.Rank = &rank
	}
	return c
}

// Session is one anonymous player (a "user click" record).
type Session struct {
	ID          int64  `json:"id"`
	SessionID   string `json:"session_id"`
	CountryCode string `json:"country_code"` // bound at creation, never reassigned
	Clicks      int64  `json:"clicks"`
}

// LeaderboardEntry is a read-only projection of Country with its computed rank.
type LeaderboardEntry struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Clicks int64  `json:"clicks"`
	Rank   int    `json:"rank"`
}

// IsCountryCode reports whether code is exactly two upper-case ASCII
// letters. It does not trim.
func IsCountryCode(code string) bool {
	if len(code) != 2 {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// NormalizeCountryCode trims and upper-cases an ISO country code.
func NormalizeCountryCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
