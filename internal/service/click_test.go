package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/catclicker/catclicker/internal/admission"
	"github.com/catclicker/catclicker/internal/geo"
	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/metrics"
	"github.com/catclicker/catclicker/internal/policy"
	"github.com/catclicker/catclicker/internal/testutil"
)

type countingNotifier struct{ calls int }

func (n *countingNotifier) Notify() { n.calls++ }

func newService(t *testing.T, mutate func(p *policy.Policy), opts ...Option) (*ClickService, *ledger.Memory) {
	t.Helper()
	mem := ledger.NewMemory()
	eval := admission.New(testutil.NewPolicyStore(t, mutate))
	return NewClickService(mem, eval, opts...), mem
}

func whitelistCZ(p *policy.Policy) {
	p.Mode = policy.ModeWhitelist
	p.Countries = []string{"CZ"}
}

func TestSubmitClicks_WhitelistAccepted(t *testing.T) {
	svc, _ := newService(t, whitelistCZ)

	res, err := svc.SubmitClicks(context.Background(), SubmitInput{
		CountryCode: "CZ",
		CountryName: "Czechia",
		Clicks:      5,
		SessionID:   "s1",
	})
	if err != nil {
		t.Fatalf("SubmitClicks failed: %v", err)
	}

	want := SubmitResult{CountryClicks: 5, UserClicks: 5, GlobalClicks: 5, CountryRank: 1}
	if *res != want {
		t.Errorf("expected %+v, got %+v", want, *res)
	}
}

func TestSubmitClicks_WhitelistDenied(t *testing.T) {
	notifier := &countingNotifier{}
	rec := metrics.NewInMemory()
	svc, mem := newService(t, whitelistCZ, WithNotifier(notifier), WithMetrics(rec))

	_, err := svc.SubmitClicks(context.Background(), SubmitInput{
		CountryCode: "US",
		CountryName: "United States",
		Clicks:      3,
		SessionID:   "s2",
	})

	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if !denied.Decision.Banned || denied.Decision.Kind != admission.KindMode {
		t.Errorf("unexpected decision: %+v", denied.Decision)
	}
	if denied.Decision.SupportURL == "" {
		t.Error("expected support URL on denial")
	}
	if mem.CountryCount() != 0 || mem.GlobalClickCount() != 0 {
		t.Error("denied submission must not touch the ledger")
	}
	if notifier.calls != 0 {
		t.Errorf("expected no notification, got %d", notifier.calls)
	}
	if rec.Snapshot().SubmissionsDenied["mode"] != 1 {
		t.Errorf("expected denied metric, got %v", rec.Snapshot().SubmissionsDenied)
	}
}

func TestSubmitClicks_VPNGate(t *testing.T) {
	tests := []struct {
		name      string
		block     bool
		wantAllow bool
	}{
		{"blocked", true, false},
		{"allowed when not blocking", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newService(t, func(p *policy.Policy) {
				p.VPN.Enabled = true
				p.VPN.BlockVPNUsers = tt.block
			})

			_, err := svc.SubmitClicks(context.Background(), SubmitInput{
				CountryCode: "DE", CountryName: "Germany", Clicks: 1, SessionID: "vpn", UsingVPN: true,
			})

			if tt.wantAllow && err != nil {
				t.Fatalf("expected success, got %v", err)
			}
			if !tt.wantAllow {
				var denied *DeniedError
				if !errors.As(err, &denied) || denied.Decision.Kind != admission.KindVPN {
					t.Fatalf("expected VPN denial, got %v", err)
				}
			}
		})
	}
}

func TestSubmitClicks_Validation(t *testing.T) {
	valid := SubmitInput{CountryCode: "CZ", CountryName: "Czechia", Clicks: 1, SessionID: "s"}

	tests := []struct {
		name   string
		mutate func(in *SubmitInput)
		fields []string
	}{
		{"one letter code", func(in *SubmitInput) { in.CountryCode = "C" }, []string{"countryCode"}},
		{"three letter code", func(in *SubmitInput) { in.CountryCode = "CZE" }, []string{"countryCode"}},
		{"digits", func(in *SubmitInput) { in.CountryCode = "42" }, []string{"countryCode"}},
		{"empty name", func(in *SubmitInput) { in.CountryName = "" }, []string{"countryName"}},
		{"zero clicks", func(in *SubmitInput) { in.Clicks = 0 }, []string{"clicks"}},
		{"negative clicks", func(in *SubmitInput) { in.Clicks = -4 }, []string{"clicks"}},
		{"fractional clicks", func(in *SubmitInput) { in.Clicks = 2.5 }, []string{"clicks"}},
		{"NaN clicks", func(in *SubmitInput) { in.Clicks = math.NaN() }, []string{"clicks"}},
		{"huge clicks", func(in *SubmitInput) { in.Clicks = 1e300 }, []string{"clicks"}},
		{"empty session", func(in *SubmitInput) { in.SessionID = "" }, []string{"sessionId"}},
		{"long session", func(in *SubmitInput) { in.SessionID = strings.Repeat("x", MaxSessionIDLength+1) }, []string{"sessionId"}},
		{"control chars", func(in *SubmitInput) { in.SessionID = "a\nb" }, []string{"sessionId"}},
		{"everything wrong", func(in *SubmitInput) { *in = SubmitInput{} }, []string{"countryCode", "countryName", "clicks", "sessionId"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mem := newService(t, nil)
			in := valid
			tt.mutate(&in)

			_, err := svc.SubmitClicks(context.Background(), in)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.fields) {
				t.Fatalf("expected fields %v, got %+v", tt.fields, verr.Fields)
			}
			for i, f := range tt.fields {
				if verr.Fields[i].Field != f {
					t.Errorf("field %d: expected %s, got %s", i, f, verr.Fields[i].Field)
				}
			}
			if mem.CountryCount() != 0 {
				t.Error("invalid submission must not touch the ledger")
			}
		})
	}
}

func TestSubmitClicks_NonLetterCodesRejected(t *testing.T) {
	// allow_all admits any country, so only validation stands in the way.
	svc, mem := newService(t, nil)

	for _, code := range []string{"ČZ", "u ", " u", "12", "é€", "C1"} {
		_, err := svc.SubmitClicks(context.Background(), SubmitInput{CountryCode: code, CountryName: "x", Clicks: 1, SessionID: "s"})

		var verr *ValidationError
		if !errors.As(err, &verr) || len(verr.Fields) != 1 || verr.Fields[0].Field != "countryCode" {
			t.Errorf("code %q: expected countryCode validation error, got %v", code, err)
			continue
		}
		if verr.Fields[0].Message != msgCodeLetters {
			t.Errorf("code %q: expected %q, got %q", code, msgCodeLetters, verr.Fields[0].Message)
		}
	}

	if mem.CountryCount() != 0 || mem.GlobalClickCount() != 0 {
		t.Errorf("expected untouched ledger, got %d countries and %d clicks", mem.CountryCount(), mem.GlobalClickCount())
	}
}

func TestSubmitClicks_BatchCap(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "US", CountryName: "United States", Clicks: MaxClicksPerBatch, SessionID: "s"}); err != nil {
		t.Fatalf("expected a full batch to pass, got %v", err)
	}

	_, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "US", CountryName: "United States", Clicks: MaxClicksPerBatch + 1, SessionID: "s"})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields[0].Message != msgClicksTooHigh {
		t.Errorf("expected clicks too large, got %v", err)
	}
}

func TestSubmitClicks_OverflowRejected(t *testing.T) {
	notifier := &countingNotifier{}
	svc, mem := newService(t, nil, WithNotifier(notifier))
	if _, err := mem.Record(ledger.Submission{CountryCode: "US", CountryName: "United States", SessionID: "seed", Clicks: math.MaxInt64 - 1}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	_, err := svc.SubmitClicks(context.Background(), SubmitInput{CountryCode: "US", CountryName: "United States", Clicks: 2, SessionID: "s"})
	if !errors.Is(err, ErrClicksOverflow) {
		t.Fatalf("expected ErrClicksOverflow, got %v", err)
	}
	if mem.GlobalClickCount() != math.MaxInt64-1 {
		t.Errorf("expected global total unchanged, got %d", mem.GlobalClickCount())
	}
	if notifier.calls != 0 {
		t.Errorf("expected no notification, got %d", notifier.calls)
	}
}

func TestSubmitClicks_LowercaseCodeNormalized(t *testing.T) {
	svc, mem := newService(t, whitelistCZ)

	if _, err := svc.SubmitClicks(context.Background(), SubmitInput{CountryCode: "cz", CountryName: "Czechia", Clicks: 2, SessionID: "s"}); err != nil {
		t.Fatalf("SubmitClicks failed: %v", err)
	}
	if _, err := mem.Country("CZ"); err != nil {
		t.Errorf("expected country stored upper-case: %v", err)
	}
}

func TestSubmitClicks_LeaderboardScenario(t *testing.T) {
	notifier := &countingNotifier{}
	svc, _ := newService(t, nil, WithNotifier(notifier))
	ctx := context.Background()

	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "US", CountryName: "United States", Clicks: 5, SessionID: "a"}); err != nil {
		t.Fatalf("submit US: %v", err)
	}
	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "JP", CountryName: "Japan", Clicks: 10, SessionID: "b"}); err != nil {
		t.Fatalf("submit JP: %v", err)
	}

	top := svc.TopCountries(ctx, 2)
	if len(top) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(top))
	}
	if top[0].Code != "JP" || top[0].Clicks != 10 || top[0].Rank != 1 {
		t.Errorf("unexpected first entry: %+v", top[0])
	}
	if top[1].Code != "US" || top[1].Clicks != 5 || top[1].Rank != 2 {
		t.Errorf("unexpected second entry: %+v", top[1])
	}
	if notifier.calls != 2 {
		t.Errorf("expected 2 notifications, got %d", notifier.calls)
	}
}

func TestSubmitClicks_SessionKeepsBoundCountry(t *testing.T) {
	svc, mem := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "CZ", CountryName: "Czechia", Clicks: 1, SessionID: "roamer"}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "SK", CountryName: "Slovakia", Clicks: 4, SessionID: "roamer"})
	if err != nil {
		t.Fatal(err)
	}

	if res.CountryClicks != 4 || res.UserClicks != 5 {
		t.Errorf("expected SK credited with 4 and session total 5, got %+v", res)
	}
	sess, err := mem.Session("roamer")
	if err != nil {
		t.Fatal(err)
	}
	if sess.CountryCode != "CZ" {
		t.Errorf("expected session to stay bound to CZ, got %s", sess.CountryCode)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "FR", CountryName: "France", Clicks: 7, SessionID: "known"}); err != nil {
		t.Fatal(err)
	}

	unknown := svc.Stats(ctx, "nobody")
	if unknown != (ledger.Stats{GlobalClicks: 7}) {
		t.Errorf("expected zeros with global 7, got %+v", unknown)
	}

	known := svc.Stats(ctx, "known")
	want := ledger.Stats{UserClicks: 7, CountryClicks: 7, GlobalClicks: 7, CountryRank: 1}
	if known != want {
		t.Errorf("expected %+v, got %+v", want, known)
	}
}

func TestCountry(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	if _, err := svc.Country(ctx, "ZZ"); !errors.Is(err, ErrCountryNotFound) {
		t.Errorf("expected ErrCountryNotFound, got %v", err)
	}

	if _, err := svc.SubmitClicks(ctx, SubmitInput{CountryCode: "IT", CountryName: "Italy", Clicks: 3, SessionID: "s"}); err != nil {
		t.Fatal(err)
	}
	c, err := svc.Country(ctx, "it")
	if err != nil {
		t.Fatalf("Country failed: %v", err)
	}
	if c.Name != "Italy" || c.Clicks != 3 || c.RankOrZero() != 1 {
		t.Errorf("unexpected country: %+v", c)
	}
}

func TestNewSessionID(t *testing.T) {
	svc, _ := newService(t, nil)

	a, b := svc.NewSessionID(), svc.NewSessionID()
	if a == "" || a == b {
		t.Errorf("expected distinct non-empty ids, got %q and %q", a, b)
	}
	if len(a) != 26 {
		t.Errorf("expected 26-character ULID, got %q", a)
	}

	fixed, _ := newService(t, nil, WithIDGenerator(func() string { return "fixed" }))
	if got := fixed.NewSessionID(); got != "fixed" {
		t.Errorf("expected injected generator, got %q", got)
	}
}

type stubLocator struct{ loc geo.Location }

func (s stubLocator) Resolve(context.Context, string) geo.Location { return s.loc }
