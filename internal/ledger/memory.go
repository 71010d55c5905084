package ledger

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/catclicker/catclicker/internal/model"
)

// Memory is an in-process Ledger. A single RWMutex guards all state, so
// increments and rank recomputation are observed together.
type Memory struct {
	mu sync.RWMutex

	countries []*model.Country // insertion order
	byCode    map[string]*model.Country
	sessions  map[string]*model.Session

	nextCountryID int64
	nextSessionID int64
	version       uint64
}

var _ Ledger = (*Memory)(nil)

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{
		byCode:   make(map[string]*model.Country),
		sessions: make(map[string]*model.Session),
	}
}

// GetOrCreateCountry returns the country for code, creating it with zero
// clicks and no rank on first use. The first non-empty name wins.
func (m *Memory) GetOrCreateCountry(code, name string) (model.Country, error) {
	code = model.NormalizeCountryCode(code)
	if !model.IsCountryCode(code) {
		return model.Country{}, ErrInvalidCountryCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.getOrCreateCountryLocked(code, name).Clone(), nil
}

// GetOrCreateSession returns the session, creating it bound to countryCode
// on first use. An existing session keeps its original country.
func (m *Memory) GetOrCreateSession(sessionID, countryCode string) (model.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return model.Session{}, ErrInvalidSessionID
	}
	countryCode = model.NormalizeCountryCode(countryCode)
	if !model.IsCountryCode(countryCode) {
		return model.Session{}, ErrInvalidCountryCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return *m.getOrCreateSessionLocked(sessionID, countryCode), nil
}

// AddClicks increments a country's total and recomputes every rank.
func (m *Memory) AddClicks(code string, n int64) (model.Country, error) {
	if n <= 0 {
		return model.Country{}, ErrInvalidClicks
	}
	code = model.NormalizeCountryCode(code)

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.byCode[code]
	if !ok {
		return model.Country{}, ErrCountryNotFound
	}
	if wouldOverflow(c.Clicks, n) || wouldOverflow(m.globalLocked(), n) {
		return model.Country{}, ErrClicksOverflow
	}
	c.Clicks += n
	m.recomputeRanksLocked()
	m.version++

	return c.Clone(), nil
}

// AddSessionClicks increments a session's total.
func (m *Memory) AddSessionClicks(sessionID string, n int64) (model.Session, error) {
	if n <= 0 {
		return model.Session{}, ErrInvalidClicks
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	if wouldOverflow(s.Clicks, n) {
		return model.Session{}, ErrClicksOverflow
	}
	s.Clicks += n
	m.version++

	return *s, nil
}

// Record applies a whole submission under one lock hold: both lazy
// creations, both increments and the rank recomputation. Clicks are
// credited to the submitted country even when the session is bound to
// another one.
func (m *Memory) Record(sub Submission) (Result, error) {
	if sub.Clicks <= 0 {
		return Result{}, ErrInvalidClicks
	}
	code := model.NormalizeCountryCode(sub.CountryCode)
	if !model.IsCountryCode(code) {
		return Result{}, ErrInvalidCountryCode
	}
	if strings.TrimSpace(sub.SessionID) == "" {
		return Result{}, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Checked before any lazy creation so a rejected batch leaves no trace.
	if c, ok := m.byCode[code]; ok && wouldOverflow(c.Clicks, sub.Clicks) {
		return Result{}, ErrClicksOverflow
	}
	if s, ok := m.sessions[sub.SessionID]; ok && wouldOverflow(s.Clicks, sub.Clicks) {
		return Result{}, ErrClicksOverflow
	}
	if wouldOverflow(m.globalLocked(), sub.Clicks) {
		return Result{}, ErrClicksOverflow
	}

	c := m.getOrCreateCountryLocked(code, sub.CountryName)
	s := m.getOrCreateSessionLocked(sub.SessionID, code)

	c.Clicks += sub.Clicks
	s.Clicks += sub.Clicks
	m.recomputeRanksLocked()
	m.version++

	return Result{
		Country:      c.Clone(),
		Session:      *s,
		GlobalClicks: m.globalLocked(),
	}, nil
}

// Country returns a copy of the country for code.
func (m *Memory) Country(code string) (model.Country, error) {
	code = model.NormalizeCountryCode(code)

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byCode[code]
	if !ok {
		return model.Country{}, ErrCountryNotFound
	}
	return c.Clone(), nil
}

// Session returns a copy of the session.
func (m *Memory) Session(sessionID string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return *s, nil
}

// Stats returns the session's totals alongside its bound country. An unknown
// session yields zeros with the current global total.
func (m *Memory) Stats(sessionID string) Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{GlobalClicks: m.globalLocked()}

	s, ok := m.sessions[sessionID]
	if !ok {
		return st
	}
	st.UserClicks = s.Clicks

	if c, ok := m.byCode[s.CountryCode]; ok {
		st.CountryClicks = c.Clicks
		st.CountryRank = c.RankOrZero()
	}
	return st
}

// GlobalClickCount sums every country's clicks.
func (m *Memory) GlobalClickCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.globalLocked()
}

// RankOf returns the stored rank for code, or 0 if unknown or unranked.
func (m *Memory) RankOf(code string) int {
	code = model.NormalizeCountryCode(code)

	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.byCode[code]
	if !ok {
		return 0
	}
	return c.RankOrZero()
}

// TopCountries returns up to limit countries by clicks descending. Ties keep
// insertion order.
func (m *Memory) TopCountries(limit int) []model.LeaderboardEntry {
	if limit <= 0 {
		return []model.LeaderboardEntry{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sorted := m.sortedLocked()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]model.LeaderboardEntry, len(sorted))
	for i, c := range sorted {
		entries[i] = model.LeaderboardEntry{
			Code:   c.Code,
			Name:   c.Name,
			Clicks: c.Clicks,
			Rank:   i + 1,
		}
	}
	return entries
}

// CountryCount returns the number of countries tracked.
func (m *Memory) CountryCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.countries)
}

// Version increases on every mutation. The snapshot worker uses it to skip
// flushes when nothing changed.
func (m *Memory) Version() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.version
}

// Snapshot copies the full ledger state.
func (m *Memory) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := State{
		Countries: make([]model.Country, len(m.countries)),
		Sessions:  make([]model.Session, 0, len(m.sessions)),
	}
	for i, c := range m.countries {
		st.Countries[i] = c.Clone()
	}
	for _, s := range m.sessions {
		st.Sessions = append(st.Sessions, *s)
	}
	sort.Slice(st.Sessions, func(i, j int) bool {
		return st.Sessions[i].ID < st.Sessions[j].ID
	})
	return st
}

// Restore replaces the ledger contents with st. Countries keep the given
// order as insertion order and ranks are recomputed from the totals.
func (m *Memory) Restore(st State) error {
	countries := make([]*model.Country, 0, len(st.Countries))
	byCode := make(map[string]*model.Country, len(st.Countries))
	var maxCountryID int64

	for _, c := range st.Countries {
		code := model.NormalizeCountryCode(c.Code)
		if !model.IsCountryCode(code) {
			return fmt.Errorf("restore country %d: %w", c.ID, ErrInvalidCountryCode)
		}
		if c.Clicks < 0 {
			return fmt.Errorf("restore country %s: %w", code, ErrInvalidClicks)
		}
		if _, dup := byCode[code]; dup {
			return fmt.Errorf("restore country %s: duplicate code", code)
		}
		cp := c.Clone()
		cp.Code = code
		cp.Rank = nil
		countries = append(countries, &cp)
		byCode[code] = &cp
		if cp.ID > maxCountryID {
			maxCountryID = cp.ID
		}
	}

	sessions := make(map[string]*model.Session, len(st.Sessions))
	var maxSessionID int64
	for _, s := range st.Sessions {
		if strings.TrimSpace(s.SessionID) == "" {
			return fmt.Errorf("restore session %d: %w", s.ID, ErrInvalidSessionID)
		}
		if s.Clicks < 0 {
			return fmt.Errorf("restore session %s: %w", s.SessionID, ErrInvalidClicks)
		}
		cp := s
		cp.CountryCode = model.NormalizeCountryCode(cp.CountryCode)
		sessions[cp.SessionID] = &cp
		if cp.ID > maxSessionID {
			maxSessionID = cp.ID
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.countries = countries
	m.byCode = byCode
	m.sessions = sessions
	m.nextCountryID = maxCountryID
	m.nextSessionID = maxSessionID
	if len(countries) > 0 {
		m.recomputeRanksLocked()
	}
	m.version++

	return nil
}

func (m *Memory) getOrCreateCountryLocked(code, name string) *model.Country {
	if c, ok := m.byCode[code]; ok {
		if c.Name == "" && name != "" {
			c.Name = name
		}
		return c
	}

	m.nextCountryID++
	c := &model.Country{ID: m.nextCountryID, Code: code, Name: name}
	m.countries = append(m.countries, c)
	m.byCode[code] = c
	m.version++
	return c
}

func (m *Memory) getOrCreateSessionLocked(sessionID, code string) *model.Session {
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}

	m.nextSessionID++
	s := &model.Session{ID: m.nextSessionID, SessionID: sessionID, CountryCode: code}
	m.sessions[sessionID] = s
	m.version++
	return s
}

// sortedLocked returns countries by clicks descending. The sort is stable
// over insertion order.
func (m *Memory) sortedLocked() []*model.Country {
	sorted := make([]*model.Country, len(m.countries))
	copy(sorted, m.countries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Clicks > sorted[j].Clicks
	})
	return sorted
}

func (m *Memory) recomputeRanksLocked() {
	for i, c := range m.sortedLocked() {
		rank := i + 1
		c.Rank = &rank
	}
}

// wouldOverflow reports whether total+n exceeds math.MaxInt64.
func wouldOverflow(total, n int64) bool {
	return total > math.MaxInt64-n
}

func (m *Memory) globalLocked() int64 {
	var total int64
	for _, c := range m.countries {
		total += c.Clicks
	}
	return total
}
