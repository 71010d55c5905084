// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/model"
	"github.com/catclicker/catclicker/internal/service"
)

// SubmitClicksRequest represents the request body for POST /api/clicks.
// Clicks is decoded as a JSON number so fractional values can be rejected.
type SubmitClicksRequest struct {
	CountryCode string  `json:"countryCode"`
	CountryName string  `json:"countryName"`
	Clicks      float64 `json:"clicks"`
	SessionID   string  `json:"sessionId"`
	UsingVPN    bool    `json:"usingVpn,omitempty"`
}

// SubmitClicksResponse is returned for an accepted click batch.
type SubmitClicksResponse struct {
	Success       bool  `json:"success"`
	CountryClicks int64 `json:"countryClicks"`
	UserClicks    int64 `json:"userClicks"`
	GlobalClicks  int64 `json:"globalClicks"`
	CountryRank   int   `json:"countryRank"`
}

// DeniedResponse is the 403 body for a blocked submission.
type DeniedResponse struct {
	Success    bool   `json:"success"`
	Banned     bool   `json:"banned"`
	Message    string `json:"message"`
	DiscordURL string `json:"discordUrl,omitempty"`
}

// ValidationErrorResponse is the 400 body for malformed submissions.
type ValidationErrorResponse struct {
	Message string               `json:"message"`
	Errors  []service.FieldError `json:"errors"`
}

// MessageResponse is a bare message body, e.g. for 404s.
type MessageResponse struct {
	Message string `json:"message"`
}

// StatsResponse represents a session's totals.
type StatsResponse struct {
	UserClicks    int64 `json:"userClicks"`
	CountryClicks int64 `json:"countryClicks"`
	GlobalClicks  int64 `json:"globalClicks"`
	CountryRank   int   `json:"countryRank"`
}

// CountryResponse represents a single country. Rank is null until the
// first ranking.
type CountryResponse struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Clicks int64  `json:"clicks"`
	Rank   *int   `json:"rank"`
}

// SessionResponse carries a fresh session id.
type SessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CountryInfoResponse describes the caller's detected country and whether
// it may play.
type CountryInfoResponse struct {
	Code                string  `json:"code"`
	Name                string  `json:"name"`
	IP                  string  `json:"ip"`
	City                string  `json:"city"`
	Region              string  `json:"region"`
	Allowed             bool    `json:"allowed"`
	Banned              bool    `json:"banned"`
	IsPermanentlyBanned bool    `json:"isPermanentlyBanned"`
	IsTemporarilyBanned bool    `json:"isTemporarilyBanned"`
	BanMessage          *string `json:"banMessage"`
	DiscordURL          *string `json:"discordUrl"`
	UsingVPN            bool    `json:"usingVpn"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToSubmitClicksResponse converts a service result.
func ToSubmitClicksResponse(res *service.SubmitResult) SubmitClicksResponse {
	return SubmitClicksResponse{
		Success:       true,
		CountryClicks: res.CountryClicks,
		UserClicks:    res.UserClicks,
		GlobalClicks:  res.GlobalClicks,
		CountryRank:   res.CountryRank,
	}
}

// ToStatsResponse converts ledger stats.
func ToStatsResponse(st ledger.Stats) StatsResponse {
	return StatsResponse{
		UserClicks:    st.UserClicks,
		CountryClicks: st.CountryClicks,
		GlobalClicks:  st.GlobalClicks,
		CountryRank:   st.CountryRank,
	}
}

// ToCountryResponse converts a Country model.
func ToCountryResponse(c model.Country) CountryResponse {
	return CountryResponse{
		Code:   c.Code,
		Name:   c.Name,
		Clicks: c.Clicks,
		Rank:   c.Rank,
	}
}

// ToCountryInfoResponse converts service country info. Ban message and
// support link are null unless the client is banned.
func ToCountryInfoResponse(info service.CountryInfo) CountryInfoResponse {
	resp := CountryInfoResponse{
		Code:                info.Code,
		Name:                info.Name,
		IP:                  info.IP,
		City:                info.City,
		Region:              info.Region,
		Allowed:             info.Allowed,
		Banned:              info.Banned,
		IsPermanentlyBanned: info.PermanentlyBanned,
		IsTemporarilyBanned: info.TemporarilyBanned,
		UsingVPN:            info.UsingVPN,
	}
	if info.Banned {
		msg, url := info.BanMessage, info.SupportURL
		resp.BanMessage = &msg
		resp.DiscordURL = &url
	}
	return resp
}
