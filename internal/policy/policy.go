// Package policy holds the country admission configuration and the pure
// queries over it. Nothing in this package performs I/O except Load.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/catclicker/catclicker/internal/model"
)

// Mode is the baseline admission policy applied before ban overrides.
type Mode string

const (
	// ModeWhitelist admits only the listed countries.
	ModeWhitelist Mode = "whitelist"
	// ModeBlacklist admits every country except the listed ones.
	ModeBlacklist Mode = "blacklist"
	// ModeAllowAll admits every country regardless of the list.
	ModeAllowAll Mode = "allow_all"
)

// IsValid reports whether m is a known mode.
func (m Mode) IsValid() bool {
	return m == ModeWhitelist || m == ModeBlacklist || m == ModeAllowAll
}

// DefaultSupportURL is the appeal link shown to denied players.
const DefaultSupportURL = "https://discord.gg/your-invite-link"

// DefaultVPNBlockedMessage is shown to players detected behind a VPN or proxy.
const DefaultVPNBlockedMessage = "Don't cheat or use any type of bots. We've prevented this by disabling VPN services. Please disable your VPN to continue playing."

// ErrInvalidPolicy is returned when a policy fails validation.
var ErrInvalidPolicy = errors.New("invalid policy")

// PermanentBan denies a country unconditionally.
type PermanentBan struct {
	CountryCode string
	Reason      string
	Message     string // optional custom message
}

// TemporaryBan denies a country while now < ExpiresAt.
type TemporaryBan struct {
	CountryCode string
	Reason      string
	ExpiresAt   time.Time
	Message     string // optional custom message
}

// VPNPolicy controls VPN/proxy gating.
type VPNPolicy struct {
	Enabled       bool
	BlockVPNUsers bool
	Message       string
}

// Policy is the process-wide admission configuration.
type Policy struct {
	Mode          Mode
	Countries     []string
	PermanentBans []PermanentBan
	TemporaryBans []TemporaryBan
	VPN           VPNPolicy
	SupportURL    string
}

// Default returns the policy used when no policy file is configured:
// every country may play and VPN users are blocked.
func Default() Policy {
	return Policy{
		Mode:       ModeAllowAll,
		Countries:  []string{},
		SupportURL: DefaultSupportURL,
		VPN: VPNPolicy{
			Enabled:       true,
			BlockVPNUsers: true,
			Message:       DefaultVPNBlockedMessage,
		},
	}
}

// Validate checks the policy for unknown modes and malformed country codes.
// Bans with an empty country code are treated as inert placeholders.
func (p Policy) Validate() error {
	if !p.Mode.IsValid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidPolicy, p.Mode)
	}

	for i, code := range p.Countries {
		if !model.IsCountryCode(model.NormalizeCountryCode(code)) {
			return fmt.Errorf("%w: countries[%d] %q is not a 2-letter country code", ErrInvalidPolicy, i, code)
		}
	}

	for i, ban := range p.PermanentBans {
		code := model.NormalizeCountryCode(ban.CountryCode)
		if code != "" && !model.IsCountryCode(code) {
			return fmt.Errorf("%w: permanent ban %d has invalid country code %q", ErrInvalidPolicy, i, ban.CountryCode)
		}
	}

	for i, ban := range p.TemporaryBans {
		code := model.NormalizeCountryCode(ban.CountryCode)
		if code == "" {
			continue
		}
		if !model.IsCountryCode(code) {
			return fmt.Errorf("%w: temporary ban %d has invalid country code %q", ErrInvalidPolicy, i, ban.CountryCode)
		}
		if ban.ExpiresAt.IsZero() {
			return fmt.Errorf("%w: temporary ban %d for %s has no expiry", ErrInvalidPolicy, i, code)
		}
	}

	return nil
}
