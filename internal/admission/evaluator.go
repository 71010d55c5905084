// Package admission decides whether a client may submit clicks for a country.
package admission

import (
	"fmt"
	"time"

	"github.com/catclicker/catclicker/internal/model"
	"github.com/catclicker/catclicker/internal/policy"
)

// DenialKind classifies why a submission was denied.
type DenialKind string

const (
	KindNone           DenialKind = "none"
	KindVPN            DenialKind = "vpn"
	KindPermanent      DenialKind = "permanent"
	KindTemporary      DenialKind = "temporary"
	KindMode           DenialKind = "mode"
	KindUnknownCountry DenialKind = "unknown_country"
)

const (
	msgUnknownCountry = "This country is not recognized or is banned from the clicker game."
	msgPermanentBan   = "This country is permanently banned by Cat Clicker a.s."
	msgTemporaryBan   = "This country is temporarily banned until %s."
	msgModeDenied     = "This country is currently banned from the clicker game. If you want to have this country working, check out our Discord and request to have your country whitelisted."

	banDateLayout = "January 2, 2006"
)

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	Banned     bool
	Reason     string // empty when allowed
	Kind       DenialKind
	SupportURL string // empty when allowed
}

// Status is the full admission picture for a country, used by country-info.
// The per-field country flags ignore the VPN gate.
type Status struct {
	Decision

	CountryAllowed    bool
	PermanentlyBanned bool
	TemporarilyBanned bool
	VPNBlocked        bool
	UsingVPN          bool
}

// Evaluator applies the policy precedence: VPN gate, permanent ban,
// temporary ban, then the baseline mode.
type Evaluator struct {
	store *policy.Store
}

// New creates an Evaluator over store.
func New(store *policy.Store) *Evaluator {
	return &Evaluator{store: store}
}

// Evaluate decides whether clicks for code are admitted.
func (e *Evaluator) Evaluate(code string, usingVPN bool) Decision {
	if usingVPN && e.store.ShouldBlockVPN() {
		return e.deny(KindVPN, e.store.VPNBlockedMessage())
	}
	return e.evaluateCountry(model.NormalizeCountryCode(code))
}

// Inspect reports every admission flag for code along with the Decision
// Evaluate would return.
func (e *Evaluator) Inspect(code string, usingVPN bool) Status {
	code = model.NormalizeCountryCode(code)

	st := Status{
		Decision:          e.Evaluate(code, usingVPN),
		CountryAllowed:    e.store.IsAllowed(code),
		PermanentlyBanned: e.store.IsPermanentlyBanned(code),
		TemporarilyBanned: e.store.IsTemporarilyBanned(code),
		UsingVPN:          e.store.VPNDetectionEnabled() && usingVPN,
	}
	st.VPNBlocked = st.UsingVPN && e.store.ShouldBlockVPN()
	return st
}

func (e *Evaluator) evaluateCountry(code string) Decision {
	if !model.IsCountryCode(code) {
		return e.deny(KindUnknownCountry, msgUnknownCountry)
	}

	if ban, ok := e.store.PermanentBanInfo(code); ok {
		if ban.Message != "" {
			return e.deny(KindPermanent, ban.Message)
		}
		return e.deny(KindPermanent, msgPermanentBan)
	}

	if ban, ok := e.store.TemporaryBanInfo(code); ok {
		if ban.Message != "" {
			return e.deny(KindTemporary, ban.Message)
		}
		return e.deny(KindTemporary, fmt.Sprintf(msgTemporaryBan, formatBanDate(ban.ExpiresAt)))
	}

	if !e.store.IsAllowedByMode(code) {
		return e.deny(KindMode, msgModeDenied)
	}

	return Decision{Allowed: true, Kind: KindNone}
}

func (e *Evaluator) deny(kind DenialKind, reason string) Decision {
	return Decision{
		Allowed:    false,
		Banned:     true,
		Reason:     reason,
		Kind:       kind,
		SupportURL: e.store.SupportURL(),
	}
}

func formatBanDate(t time.Time) string {
	return t.UTC().Format(banDateLayout)
}
