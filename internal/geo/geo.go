// Package geo resolves client IP addresses to countries through a chain of
// external providers with caching and a fixed fallback.
package geo

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Sentinel errors.
var (
	// ErrNoResult means the provider answered but had no usable location.
	ErrNoResult = errors.New("no geolocation result")
	// ErrRateLimited means the provider (or our own throttle) refused the call.
	ErrRateLimited = errors.New("geolocation provider rate limited")
	// ErrInvalidIP is returned for addresses that do not parse.
	ErrInvalidIP = errors.New("invalid ip address")
)

// Unknown is used for missing city and region values.
const Unknown = "Unknown"

// SourceDefault marks a Location produced by the fallback.
const SourceDefault = "default"

// Location is a resolved client position plus the VPN signal.
type Location struct {
	IP          string `json:"ip"`
	CountryCode string `json:"country_code"`
	CountryName string `json:"country_name"`
	City        string `json:"city"`
	Region      string `json:"region"`
	UsingVPN    bool   `json:"using_vpn"`
	Source      string `json:"source"`
}

// Provider looks up a single IP address.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Location, error)
}

// Cache stores resolved locations per IP.
type Cache interface {
	Get(ctx context.Context, ip string) (Location, bool, error)
	Set(ctx context.Context, ip string, loc Location) error
}

// DefaultLocation is returned when every provider fails.
func DefaultLocation(ip string) Location {
	return Location{
		IP:          ip,
		CountryCode: "US",
		CountryName: "United States",
		City:        Unknown,
		Region:      Unknown,
		Source:      SourceDefault,
	}
}

// normalize fills empty display fields and upper-cases the country code.
func normalize(loc Location, ip, source string) Location {
	loc.IP = ip
	loc.Source = source
	loc.CountryCode = strings.ToUpper(strings.TrimSpace(loc.CountryCode))
	if loc.CountryName == "" {
		loc.CountryName = loc.CountryCode
	}
	if loc.City == "" {
		loc.City = Unknown
	}
	if loc.Region == "" {
		loc.Region = Unknown
	}
	return loc
}

// CleanIP strips whitespace, brackets and a trailing port from addr.
// It returns "" when addr is not an IP.
func CleanIP(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return ""
}
