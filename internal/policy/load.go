package policy

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// document mirrors the on-disk YAML layout of a policy file.
type document struct {
	Mode                       string            `yaml:"mode"`
	Countries                  []string          `yaml:"countries"`
	PermanentlyBannedCountries []permanentBanDoc `yaml:"permanentlyBannedCountries"`
	TemporarilyBannedCountries []temporaryBanDoc `yaml:"temporarilyBannedCountries"`
	DiscordInviteURL           string            `yaml:"discordInviteUrl"`
	VPNDetection               vpnDoc            `yaml:"vpnDetection"`
}

type permanentBanDoc struct {
	CountryCode string `yaml:"countryCode"`
	Reason      string `yaml:"reason"`
	Message     string `yaml:"message"`
}

type temporaryBanDoc struct {
	CountryCode string `yaml:"countryCode"`
	Reason      string `yaml:"reason"`
	ExpiresAt   string `yaml:"expiresAt"` // RFC 3339
	Message     string `yaml:"message"`
}

type vpnDoc struct {
	Enabled           bool   `yaml:"enabled"`
	BlockVPNUsers     bool   `yaml:"blockVpnUsers"`
	VPNBlockedMessage string `yaml:"vpnBlockedMessage"`
}

// Load reads a YAML policy file.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML policy. Keys left out of the document keep the
// values of Default().
func Parse(data []byte) (Policy, error) {
	def := Default()
	doc := document{
		Mode:             string(def.Mode),
		DiscordInviteURL: def.SupportURL,
		VPNDetection: vpnDoc{
			Enabled:           def.VPN.Enabled,
			BlockVPNUsers:     def.VPN.BlockVPNUsers,
			VPNBlockedMessage: def.VPN.Message,
		},
	}

	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Policy{}, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	p := Policy{
		Mode:       Mode(strings.ToLower(strings.TrimSpace(doc.Mode))),
		Countries:  doc.Countries,
		SupportURL: doc.DiscordInviteURL,
		VPN: VPNPolicy{
			Enabled:       doc.VPNDetection.Enabled,
			BlockVPNUsers: doc.VPNDetection.BlockVPNUsers,
			Message:       doc.VPNDetection.VPNBlockedMessage,
		},
	}
	if p.Countries == nil {
		p.Countries = []string{}
	}

	for _, ban := range doc.PermanentlyBannedCountries {
		p.PermanentBans = append(p.PermanentBans, PermanentBan(ban))
	}

	for i, ban := range doc.TemporarilyBannedCountries {
		var expiresAt time.Time
		if ban.ExpiresAt != "" {
			parsed, err := time.Parse(time.RFC3339, ban.ExpiresAt)
			if err != nil {
				return Policy{}, fmt.Errorf("%w: temporary ban %d expiresAt: %v", ErrInvalidPolicy, i, err)
			}
			expiresAt = parsed
		}
		p.TemporaryBans = append(p.TemporaryBans, TemporaryBan{
			CountryCode: ban.CountryCode,
			Reason:      ban.Reason,
			ExpiresAt:   expiresAt,
			Message:     ban.Message,
		})
	}

	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}
