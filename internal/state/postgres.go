package state

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock's pool
// interface satisfies it, which keeps the backend unit-testable without a
// database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool, for teams sharing dedup
// state across operators.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "state: parse postgres config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "state: create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "state: ping postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id        TEXT PRIMARY KEY,
	marked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS domains (
	name      TEXT PRIMARY KEY,
	marked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS attempts (
	domain    TEXT NOT NULL,
	finder    TEXT NOT NULL,
	marked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (domain, finder)
);

CREATE TABLE IF NOT EXISTS companies (
	key       TEXT PRIMARY KEY,
	marked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS emails (
	address   TEXT PRIMARY KEY,
	marked_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	queries_done    INTEGER NOT NULL DEFAULT 0,
	queries_skipped INTEGER NOT NULL DEFAULT 0,
	queries_failed  INTEGER NOT NULL DEFAULT 0,
	domains_done    INTEGER NOT NULL DEFAULT 0,
	domains_skipped INTEGER NOT NULL DEFAULT 0,
	domains_failed  INTEGER NOT NULL DEFAULT 0
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "state: migrate postgres")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) isNew(ctx context.Context, sql string, args ...any) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx, sql, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "state: lookup")
	}
	return false, nil
}

func (s *PostgresStore) IsNewQuery(ctx context.Context, id string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM queries WHERE id = $1`, id)
}

func (s *PostgresStore) MarkQueryDone(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO queries (id) VALUES ($1) ON CONFLICT DO NOTHING`, id)
	return eris.Wrap(err, "state: mark query")
}

func (s *PostgresStore) IsNewDomain(ctx context.Context, name string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM domains WHERE name = $1`, name)
}

func (s *PostgresStore) MarkDomainSeen(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO domains (name) VALUES ($1) ON CONFLICT DO NOTHING`, name)
	return eris.Wrap(err, "state: mark domain")
}

func (s *PostgresStore) WasAttempted(ctx context.Context, domain, finderInstance string) (bool, error) {
	isNew, err := s.isNew(ctx,
		`SELECT 1 FROM attempts WHERE domain = $1 AND finder = $2`, domain, finderInstance)
	return !isNew, err
}

func (s *PostgresStore) MarkAttempted(ctx context.Context, domain, finderInstance string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (domain, finder) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		domain, finderInstance)
	return eris.Wrap(err, "state: mark attempt")
}

func (s *PostgresStore) IsNewCompany(ctx context.Context, key string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM companies WHERE key = $1`, key)
}

func (s *PostgresStore) MarkCompanySeen(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO companies (key) VALUES ($1) ON CONFLICT DO NOTHING`, key)
	return eris.Wrap(err, "state: mark company")
}

func (s *PostgresStore) IsNewEmail(ctx context.Context, address string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM emails WHERE address = $1`, address)
}

func (s *PostgresStore) MarkEmailSeen(ctx context.Context, address string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO emails (address) VALUES ($1) ON CONFLICT DO NOTHING`, address)
	return eris.Wrap(err, "state: mark email")
}

func (s *PostgresStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at) VALUES ($1, $2)`, id, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "state: start run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, c RunCounts) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET finished_at = $1,
			queries_done = $2, queries_skipped = $3, queries_failed = $4,
			domains_done = $5, domains_skipped = $6, domains_failed = $7
		 WHERE id = $8`,
		time.Now().UTC(),
		c.QueriesDone, c.QueriesSkipped, c.QueriesFailed,
		c.DomainsDone, c.DomainsSkipped, c.DomainsFailed,
		runID)
	if err != nil {
		return eris.Wrapf(err, "state: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("state: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at,
			queries_done, queries_skipped, queries_failed,
			domains_done, domains_skipped, domains_failed
		 FROM runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "state: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished *time.Time
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished,
			&r.Counts.QueriesDone, &r.Counts.QueriesSkipped, &r.Counts.QueriesFailed,
			&r.Counts.DomainsDone, &r.Counts.DomainsSkipped, &r.Counts.DomainsFailed); err != nil {
			return nil, eris.Wrap(err, "state: scan run")
		}
		r.FinishedAt = finished
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "state: iterate runs")
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM queries),
			(SELECT COUNT(*) FROM domains),
			(SELECT COUNT(*) FROM attempts),
			(SELECT COUNT(*) FROM companies),
			(SELECT COUNT(*) FROM emails)`).
		Scan(&st.Queries, &st.Domains, &st.Attempts, &st.Companies, &st.Emails)
	if err != nil {
		return Stats{}, eris.Wrap(err, "state: stats")
	}
	return st, nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx,
		`TRUNCATE queries, domains, attempts, companies, emails, runs`)
	return eris.Wrap(err, "state: clear")
}
