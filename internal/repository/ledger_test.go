package repository

import (
	"testing"

	"github.com/catclicker/catclicker/internal/model"
)

func TestCountryColumns(t *testing.T) {
	t.Parallel()

	rank := 1
	ids, codes, names, clicks, ranks := countryColumns([]model.Country{
		{ID: 1, Code: "JP", Name: "Japan", Clicks: 5, Rank: &rank},
		{ID: 2, Code: "US", Name: "United States", Clicks: 0},
	})

	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("unexpected ids: %v", ids)
	}
	if codes[0] != "JP" || names[1] != "United States" {
		t.Errorf("unexpected codes %v or names %v", codes, names)
	}
	if clicks[0] != 5 || clicks[1] != 0 {
		t.Errorf("unexpected clicks: %v", clicks)
	}
	// A nil rank is written as 0 and stored as NULL.
	if ranks[0] != 1 || ranks[1] != 0 {
		t.Errorf("expected ranks [1 0], got %v", ranks)
	}
}

func TestSessionColumns(t *testing.T) {
	t.Parallel()

	ids, sessionIDs, codes, clicks := sessionColumns([]model.Session{
		{ID: 7, SessionID: "s-1", CountryCode: "CZ", Clicks: 42},
	})

	if ids[0] != 7 || sessionIDs[0] != "s-1" || codes[0] != "CZ" || clicks[0] != 42 {
		t.Errorf("unexpected columns: %v %v %v %v", ids, sessionIDs, codes, clicks)
	}
}
