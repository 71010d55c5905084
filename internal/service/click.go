// Package service provides business logic for the application.
package service

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/catclicker/catclicker/internal/admission"
	"github.com/catclicker/catclicker/internal/geo"
	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/metrics"
	"github.com/catclicker/catclicker/internal/model"
)

// Admitter decides admission for a country. admission.Evaluator implements it.
type Admitter interface {
	Evaluate(code string, usingVPN bool) admission.Decision
	Inspect(code string, usingVPN bool) admission.Status
}

// Locator resolves a client IP. geo.Resolver implements it.
type Locator interface {
	Resolve(ctx context.Context, ip string) geo.Location
}

// Notifier is told after every accepted submission.
type Notifier interface {
	Notify()
}

// ClickService handles click submission and the read-only game queries.
type ClickService struct {
	ledger   ledger.Ledger
	admitter Admitter
	locator  Locator
	notifier Notifier
	metrics  metrics.Recorder
	logger   *slog.Logger
	newID    func() string
}

// Option configures a ClickService.
type Option func(*ClickService)

// WithLocator sets the geolocation chain used by CountryInfo.
func WithLocator(l Locator) Option {
	return func(s *ClickService) { s.locator = l }
}

// WithNotifier sets the accepted-submission listener.
func WithNotifier(n Notifier) Option {
	return func(s *ClickService) { s.notifier = n }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m metrics.Recorder) Option {
	return func(s *ClickService) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *ClickService) { s.logger = l }
}

// WithIDGenerator overrides session id generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *ClickService) { s.newID = fn }
}

// NewClickService creates a new ClickService.
func NewClickService(l ledger.Ledger, admitter Admitter, opts ...Option) *ClickService {
	s := &ClickService{
		ledger:   l,
		admitter: admitter,
		metrics:  metrics.NewNoop(),
		logger:   slog.Default(),
		newID:    newULID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locator == nil {
		s.locator = defaultLocator{}
	}
	s.logger = s.logger.With("component", "service.clicks")
	return s
}

// SubmitInput defines a click batch as received from the client. Clicks is
// a JSON number and must hold a positive integer.
type SubmitInput struct {
	CountryCode string
	CountryName string
	Clicks      float64
	SessionID   string
	UsingVPN    bool
}

// SubmitResult is the ledger state right after the batch was applied.
type SubmitResult struct {
	CountryClicks int64
	UserClicks    int64
	GlobalClicks  int64
	CountryRank   int
}

// SubmitClicks validates, admits and records a click batch. It returns a
// *ValidationError for malformed input and a *DeniedError when the policy
// blocks the country or VPN.
func (s *ClickService) SubmitClicks(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveSubmitDuration(time.Since(start)) }()

	if verr := validateSubmit(in); verr != nil {
		s.metrics.IncSubmissionInvalid()
		return nil, verr
	}

	code := model.NormalizeCountryCode(in.CountryCode)
	decision := s.admitter.Evaluate(code, in.UsingVPN)
	if !decision.Allowed {
		s.metrics.IncSubmissionDenied(string(decision.Kind))
		s.logger.InfoContext(ctx, "clicks_denied",
			"country_code", code,
			"kind", string(decision.Kind),
			"using_vpn", in.UsingVPN,
		)
		return nil, &DeniedError{Decision: decision}
	}

	clicks := int64(in.Clicks)
	res, err := s.ledger.Record(ledger.Submission{
		CountryCode: code,
		CountryName: in.CountryName,
		SessionID:   in.SessionID,
		Clicks:      clicks,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncClicksAccepted(code, clicks)
	s.metrics.SetCountriesTracked(s.ledger.CountryCount())
	if s.notifier != nil {
		s.notifier.Notify()
	}

	s.logger.DebugContext(ctx, "clicks_accepted",
		"country_code", code,
		"clicks", clicks,
		"country_clicks", res.Country.Clicks,
		"country_rank", res.Country.RankOrZero(),
	)

	return &SubmitResult{
		CountryClicks: res.Country.Clicks,
		UserClicks:    res.Session.Clicks,
		GlobalClicks:  res.GlobalClicks,
		CountryRank:   res.Country.RankOrZero(),
	}, nil
}

// Stats returns the totals for a session. Unknown sessions yield zeros
// with the current global total.
func (s *ClickService) Stats(_ context.Context, sessionID string) ledger.Stats {
	return s.ledger.Stats(sessionID)
}

// TopCountries returns the leaderboard. A non-positive limit yields an
// empty list.
func (s *ClickService) TopCountries(_ context.Context, limit int) []model.LeaderboardEntry {
	return s.ledger.TopCountries(limit)
}

// Country looks up a single country by code.
func (s *ClickService) Country(_ context.Context, code string) (model.Country, error) {
	return s.ledger.Country(code)
}

// NewSessionID returns a fresh opaque session identifier.
func (s *ClickService) NewSessionID() string {
	return s.newID()
}

func newULID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
