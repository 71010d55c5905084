package policy

import (
	"errors"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newTestStore(t *testing.T, p Policy) *Store {
	t.Helper()
	s, err := NewStore(p, WithClock(fixedClock))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return s
}

func TestStore_IsAllowedByMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mode      Mode
		countries []string
		code      string
		want      bool
	}{
		{"allow_all admits unlisted", ModeAllowAll, nil, "US", true},
		{"allow_all ignores list", ModeAllowAll, []string{"US"}, "US", true},
		{"whitelist admits listed", ModeWhitelist, []string{"CZ"}, "CZ", true},
		{"whitelist denies unlisted", ModeWhitelist, []string{"CZ"}, "US", false},
		{"whitelist is case insensitive", ModeWhitelist, []string{"cz"}, "Cz", true},
		{"blacklist denies listed", ModeBlacklist, []string{"RU"}, "RU", false},
		{"blacklist admits unlisted", ModeBlacklist, []string{"RU"}, "DE", true},
		{"empty code fails closed in allow_all", ModeAllowAll, nil, "", false},
		{"empty code fails closed in blacklist", ModeBlacklist, nil, "  ", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := Default()
			p.Mode = tt.mode
			p.Countries = tt.countries
			s := newTestStore(t, p)

			if got := s.IsAllowedByMode(tt.code); got != tt.want {
				t.Errorf("IsAllowedByMode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestStore_PermanentBan(t *testing.T) {
	p := Default()
	p.PermanentBans = []PermanentBan{
		{CountryCode: "", Reason: "placeholder", Message: "never matches"},
		{CountryCode: "kp", Reason: "tos", Message: "first"},
		{CountryCode: "KP", Reason: "dup", Message: "second"},
	}
	s := newTestStore(t, p)

	if !s.IsPermanentlyBanned("KP") {
		t.Error("expected KP to be permanently banned")
	}
	if !s.IsPermanentlyBanned("kp") {
		t.Error("expected case-insensitive match for kp")
	}
	if s.IsPermanentlyBanned("") {
		t.Error("empty code must not match placeholder bans")
	}

	ban, ok := s.PermanentBanInfo("Kp")
	if !ok {
		t.Fatal("expected ban info for KP")
	}
	if ban.Message != "first" {
		t.Errorf("expected first declared ban to win, got message %q", ban.Message)
	}
}

func TestStore_TemporaryBan_LazyExpiry(t *testing.T) {
	p := Default()
	p.TemporaryBans = []TemporaryBan{
		{CountryCode: "BR", Reason: "maintenance", ExpiresAt: testNow.Add(-time.Hour)},
		{CountryCode: "AR", Reason: "investigation", ExpiresAt: testNow.Add(time.Hour)},
	}

	now := testNow
	s, err := NewStore(p, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	if s.IsTemporarilyBanned("BR") {
		t.Error("expired ban must behave as absent")
	}
	if !s.IsTemporarilyBanned("AR") {
		t.Error("expected AR to be temporarily banned")
	}

	// Same store, later clock: the AR ban lapses without any cleanup.
	now = testNow.Add(2 * time.Hour)
	if s.IsTemporarilyBanned("AR") {
		t.Error("expected AR ban to expire once the clock passes expiresAt")
	}
	if _, ok := s.TemporaryBanInfo("AR"); ok {
		t.Error("expected no ban info after expiry")
	}
}

func TestStore_TemporaryBan_ExpiryBoundary(t *testing.T) {
	p := Default()
	p.TemporaryBans = []TemporaryBan{{CountryCode: "FR", ExpiresAt: testNow}}
	s := newTestStore(t, p)

	if s.IsTemporarilyBanned("FR") {
		t.Error("ban is only active while now < expiresAt")
	}
}

func TestStore_TemporaryBan_FirstUnexpiredWins(t *testing.T) {
	p := Default()
	p.TemporaryBans = []TemporaryBan{
		{CountryCode: "IT", Message: "old", ExpiresAt: testNow.Add(-time.Minute)},
		{CountryCode: "IT", Message: "current", ExpiresAt: testNow.Add(time.Minute)},
	}
	s := newTestStore(t, p)

	ban, ok := s.TemporaryBanInfo("it")
	if !ok {
		t.Fatal("expected active ban for IT")
	}
	if ban.Message != "current" {
		t.Errorf("expected the unexpired entry, got %q", ban.Message)
	}
}

func TestStore_IsAllowed_Precedence(t *testing.T) {
	p := Default()
	p.Mode = ModeWhitelist
	p.Countries = []string{"CZ", "SK", "PL"}
	p.PermanentBans = []PermanentBan{{CountryCode: "CZ"}}
	p.TemporaryBans = []TemporaryBan{
		{CountryCode: "SK", ExpiresAt: testNow.Add(time.Hour)},
		{CountryCode: "PL", ExpiresAt: testNow.Add(-time.Hour)},
	}
	s := newTestStore(t, p)

	if s.IsAllowed("CZ") {
		t.Error("permanent ban must override whitelist membership")
	}
	if s.IsAllowed("SK") {
		t.Error("active temporary ban must override whitelist membership")
	}
	if !s.IsAllowed("PL") {
		t.Error("expired temporary ban must not block a whitelisted country")
	}
	if s.IsAllowed("US") {
		t.Error("unlisted country must be denied in whitelist mode")
	}
}

func TestStore_VPN(t *testing.T) {
	tests := []struct {
		name      string
		vpn       VPNPolicy
		wantBlock bool
		wantMsg   string
	}{
		{"enabled and blocking", VPNPolicy{Enabled: true, BlockVPNUsers: true, Message: "no vpn"}, true, "no vpn"},
		{"enabled not blocking", VPNPolicy{Enabled: true, BlockVPNUsers: false}, false, DefaultVPNBlockedMessage},
		{"disabled ignores block flag", VPNPolicy{Enabled: false, BlockVPNUsers: true}, false, DefaultVPNBlockedMessage},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			p.VPN = tt.vpn
			s := newTestStore(t, p)

			if got := s.ShouldBlockVPN(); got != tt.wantBlock {
				t.Errorf("ShouldBlockVPN() = %v, want %v", got, tt.wantBlock)
			}
			if got := s.VPNBlockedMessage(); got != tt.wantMsg {
				t.Errorf("VPNBlockedMessage() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNewStore_InvalidPolicy(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"unknown mode", func(p *Policy) { p.Mode = "greylist" }},
		{"bad list code", func(p *Policy) { p.Countries = []string{"USA"} }},
		{"bad permanent code", func(p *Policy) { p.PermanentBans = []PermanentBan{{CountryCode: "1X"}} }},
		{"temporary without expiry", func(p *Policy) { p.TemporaryBans = []TemporaryBan{{CountryCode: "BR"}} }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := Default()
			tt.mutate(&p)

			_, err := NewStore(p)
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("expected ErrInvalidPolicy, got %v", err)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	p := Default()
	if p.Mode != ModeAllowAll {
		t.Errorf("expected default mode allow_all, got %s", p.Mode)
	}
	if !p.VPN.Enabled || !p.VPN.BlockVPNUsers {
		t.Error("expected default policy to block VPN users")
	}
	if p.SupportURL != DefaultSupportURL {
		t.Errorf("unexpected support URL: %s", p.SupportURL)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default policy must validate: %v", err)
	}
}
