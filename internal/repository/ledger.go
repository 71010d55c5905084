package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/catclicker/catclicker/internal/ledger"
	"github.com/catclicker/catclicker/internal/model"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS countries (
		id     BIGINT PRIMARY KEY,
		code   TEXT NOT NULL UNIQUE,
		name   TEXT NOT NULL DEFAULT '',
		clicks BIGINT NOT NULL DEFAULT 0 CHECK (clicks >= 0),
		rank   INTEGER
	);

	CREATE TABLE IF NOT EXISTS user_clicks (
		id           BIGINT PRIMARY KEY,
		session_id   TEXT NOT NULL UNIQUE,
		country_code TEXT NOT NULL,
		clicks       BIGINT NOT NULL DEFAULT 0 CHECK (clicks >= 0)
	);

	CREATE INDEX IF NOT EXISTS idx_user_clicks_country_code ON user_clicks (country_code);
`

// EnsureSchema creates the ledger tables when they do not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// LoadState reads the persisted ledger. Countries come back in ID order,
// which is their original insertion order.
func (r *Repository) LoadState(ctx context.Context) (ledger.State, error) {
	var st ledger.State

	rows, err := r.pool.Query(ctx, `SELECT id, code, name, clicks FROM countries ORDER BY id`)
	if err != nil {
		return st, fmt.Errorf("failed to query countries: %w", err)
	}
	countries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Country, error) {
		var c model.Country
		err := row.Scan(&c.ID, &c.Code, &c.Name, &c.Clicks)
		return c, err
	})
	if err != nil {
		return st, fmt.Errorf("failed to scan countries: %w", err)
	}

	rows, err = r.pool.Query(ctx, `SELECT id, session_id, country_code, clicks FROM user_clicks ORDER BY id`)
	if err != nil {
		return st, fmt.Errorf("failed to query user clicks: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Session, error) {
		var s model.Session
		err := row.Scan(&s.ID, &s.SessionID, &s.CountryCode, &s.Clicks)
		return s, err
	})
	if err != nil {
		return st, fmt.Errorf("failed to scan user clicks: %w", err)
	}

	st.Countries = countries
	st.Sessions = sessions
	return st, nil
}

// SaveState upserts the full ledger in one transaction. Rows are never
// deleted since the ledger never deletes countries or sessions.
func (r *Repository) SaveState(ctx context.Context, st ledger.State) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(st.Countries) > 0 {
		ids, codes, names, clicks, ranks := countryColumns(st.Countries)
		_, err := tx.Exec(ctx, `
			INSERT INTO countries (id, code, name, clicks, rank)
			SELECT id, code, name, clicks, NULLIF(rank, 0)
			FROM unnest($1::bigint[], $2::text[], $3::text[], $4::bigint[], $5::bigint[])
				AS t(id, code, name, clicks, rank)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				clicks = EXCLUDED.clicks,
				rank = EXCLUDED.rank
		`, pq.Array(ids), pq.Array(codes), pq.Array(names), pq.Array(clicks), pq.Array(ranks))
		if err != nil {
			return fmt.Errorf("failed to upsert countries: %w", err)
		}
	}

	if len(st.Sessions) > 0 {
		ids, sessionIDs, codes, clicks := sessionColumns(st.Sessions)
		_, err := tx.Exec(ctx, `
			INSERT INTO user_clicks (id, session_id, country_code, clicks)
			SELECT * FROM unnest($1::bigint[], $2::text[], $3::text[], $4::bigint[])
			ON CONFLICT (id) DO UPDATE SET
				clicks = EXCLUDED.clicks
		`, pq.Array(ids), pq.Array(sessionIDs), pq.Array(codes), pq.Array(clicks))
		if err != nil {
			return fmt.Errorf("failed to upsert user clicks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func countryColumns(countries []model.Country) (ids []int64, codes, names []string, clicks, ranks []int64) {
	ids = make([]int64, len(countries))
	codes = make([]string, len(countries))
	names = make([]string, len(countries))
	clicks = make([]int64, len(countries))
	ranks = make([]int64, len(countries))
	for i, c := range countries {
		ids[i] = c.ID
		codes[i] = c.Code
		names[i] = c.Name
		clicks[i] = c.Clicks
		ranks[i] = int64(c.RankOrZero())
	}
	return ids, codes, names, clicks, ranks
}

func sessionColumns(sessions []model.Session) (ids []int64, sessionIDs, codes []string, clicks []int64) {
	ids = make([]int64, len(sessions))
	sessionIDs = make([]string, len(sessions))
	codes = make([]string, len(sessions))
	clicks = make([]int64, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
		sessionIDs[i] = s.SessionID
		codes[i] = s.CountryCode
		clicks[i] = s.Clicks
	}
	return ids, sessionIDs, codes, clicks
}
