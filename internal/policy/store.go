package policy

import (
	"time"

	"github.com/catclicker/catclicker/internal/model"
)

// Store answers admission queries over an immutable Policy.
// It is safe for concurrent use.
type Store struct {
	policy    Policy
	countries map[string]struct{}
	permanent map[string]PermanentBan
	temporary map[string][]TemporaryBan
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for temporary ban expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore validates p and builds the normalized lookup tables.
func NewStore(p Policy, opts ...Option) (*Store, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		policy:    p,
		countries: make(map[string]struct{}, len(p.Countries)),
		permanent: make(map[string]PermanentBan),
		temporary: make(map[string][]TemporaryBan),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, code := range p.Countries {
		s.countries[model.NormalizeCountryCode(code)] = struct{}{}
	}

	// First matching entry wins, in declaration order.
	for _, ban := range p.PermanentBans {
		code := model.NormalizeCountryCode(ban.CountryCode)
		if code == "" {
			continue
		}
		if _, exists := s.permanent[code]; !exists {
			ban.CountryCode = code
			s.permanent[code] = ban
		}
	}

	for _, ban := range p.TemporaryBans {
		code := model.NormalizeCountryCode(ban.CountryCode)
		if code == "" {
			continue
		}
		ban.CountryCode = code
		s.temporary[code] = append(s.temporary[code], ban)
	}

	return s, nil
}

// Mode returns the configured baseline mode.
func (s *Store) Mode() Mode {
	return s.policy.Mode
}

// SupportURL returns the appeal link surfaced to denied players.
func (s *Store) SupportURL() string {
	return s.policy.SupportURL
}

// IsPermanentlyBanned reports whether code has a permanent ban.
func (s *Store) IsPermanentlyBanned(code string) bool {
	_, ok := s.PermanentBanInfo(code)
	return ok
}

// PermanentBanInfo returns the permanent ban record for code, if any.
func (s *Store) PermanentBanInfo(code string) (PermanentBan, bool) {
	code = model.NormalizeCountryCode(code)
	if code == "" {
		return PermanentBan{}, false
	}
	ban, ok := s.permanent[code]
	return ban, ok
}

// IsTemporarilyBanned reports whether code has a temporary ban that has not
// yet expired. Expired bans behave as if absent.
func (s *Store) IsTemporarilyBanned(code string) bool {
	_, ok := s.TemporaryBanInfo(code)
	return ok
}

// TemporaryBanInfo returns the first unexpired temporary ban for code.
func (s *Store) TemporaryBanInfo(code string) (TemporaryBan, bool) {
	code = model.NormalizeCountryCode(code)
	if code == "" {
		return TemporaryBan{}, false
	}

	now := s.now()
	for _, ban := range s.temporary[code] {
		if now.Before(ban.ExpiresAt) {
			return ban, true
		}
	}
	return TemporaryBan{}, false
}

// IsAllowedByMode evaluates the baseline mode only, ignoring bans.
// An empty code is never allowed.
func (s *Store) IsAllowedByMode(code string) bool {
	code = model.NormalizeCountryCode(code)
	if code == "" {
		return false
	}

	_, listed := s.countries[code]
	switch s.policy.Mode {
	case ModeAllowAll:
		return true
	case ModeWhitelist:
		return listed
	case ModeBlacklist:
		return !listed
	default:
		return false
	}
}

// IsAllowed applies permanent bans, then temporary bans, then the mode.
func (s *Store) IsAllowed(code string) bool {
	code = model.NormalizeCountryCode(code)
	if code == "" {
		return false
	}
	if s.IsPermanentlyBanned(code) || s.IsTemporarilyBanned(code) {
		return false
	}
	return s.IsAllowedByMode(code)
}

// VPNDetectionEnabled reports whether VPN signals are considered at all.
func (s *Store) VPNDetectionEnabled() bool {
	return s.policy.VPN.Enabled
}

// ShouldBlockVPN reports whether detected VPN users are denied.
func (s *Store) ShouldBlockVPN() bool {
	return s.policy.VPN.Enabled && s.policy.VPN.BlockVPNUsers
}

// VPNBlockedMessage returns the message shown to blocked VPN users.
func (s *Store) VPNBlockedMessage() string {
	if s.policy.VPN.Message == "" {
		return DefaultVPNBlockedMessage
	}
	return s.policy.VPN.Message
}
