package state

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite. The default backend:
// one local file, WAL mode so marks are durable per statement.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the state database at dsn and verifies its
// integrity. An unreadable database surfaces as ErrCorrupt.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "state: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			if strings.Contains(err.Error(), "not a database") {
				return nil, eris.Wrap(ErrCorrupt, err.Error())
			}
			return nil, eris.Wrapf(err, "state: exec %s", pragma)
		}
	}

	var check string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&check); err != nil || check != "ok" {
		db.Close()
		if err != nil {
			return nil, eris.Wrap(ErrCorrupt, err.Error())
		}
		return nil, eris.Wrapf(ErrCorrupt, "quick_check: %s", check)
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS queries (
	id        TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS domains (
	name      TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS attempts (
	domain    TEXT NOT NULL,
	finder    TEXT NOT NULL,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (domain, finder)
);

CREATE TABLE IF NOT EXISTS companies (
	key       TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS emails (
	address   TEXT PRIMARY KEY,
	marked_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	queries_done    INTEGER NOT NULL DEFAULT 0,
	queries_skipped INTEGER NOT NULL DEFAULT 0,
	queries_failed  INTEGER NOT NULL DEFAULT 0,
	domains_done    INTEGER NOT NULL DEFAULT 0,
	domains_skipped INTEGER NOT NULL DEFAULT 0,
	domains_failed  INTEGER NOT NULL DEFAULT 0
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "state: migrate sqlite")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) isNew(ctx context.Context, query, arg string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&one)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "state: lookup")
	}
	return false, nil
}

func (s *SQLiteStore) IsNewQuery(ctx context.Context, id string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM queries WHERE id = ?`, id)
}

func (s *SQLiteStore) MarkQueryDone(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO queries (id) VALUES (?)`, id)
	return eris.Wrap(err, "state: mark query")
}

func (s *SQLiteStore) IsNewDomain(ctx context.Context, name string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM domains WHERE name = ?`, name)
}

func (s *SQLiteStore) MarkDomainSeen(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO domains (name) VALUES (?)`, name)
	return eris.Wrap(err, "state: mark domain")
}

func (s *SQLiteStore) WasAttempted(ctx context.Context, domain, finderInstance string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM attempts WHERE domain = ? AND finder = ?`, domain, finderInstance).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "state: lookup attempt")
	}
	return true, nil
}

func (s *SQLiteStore) MarkAttempted(ctx context.Context, domain, finderInstance string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO attempts (domain, finder) VALUES (?, ?)`, domain, finderInstance)
	return eris.Wrap(err, "state: mark attempt")
}

func (s *SQLiteStore) IsNewCompany(ctx context.Context, key string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM companies WHERE key = ?`, key)
}

func (s *SQLiteStore) MarkCompanySeen(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO companies (key) VALUES (?)`, key)
	return eris.Wrap(err, "state: mark company")
}

func (s *SQLiteStore) IsNewEmail(ctx context.Context, address string) (bool, error) {
	return s.isNew(ctx, `SELECT 1 FROM emails WHERE address = ?`, address)
}

func (s *SQLiteStore) MarkEmailSeen(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO emails (address) VALUES (?)`, address)
	return eris.Wrap(err, "state: mark email")
}

func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at) VALUES (?, ?)`, id, time.Now().UTC())
	if err != nil {
		return "", eris.Wrap(err, "state: start run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, c RunCounts) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?,
			queries_done = ?, queries_skipped = ?, queries_failed = ?,
			domains_done = ?, domains_skipped = ?, domains_failed = ?
		 WHERE id = ?`,
		time.Now().UTC(),
		c.QueriesDone, c.QueriesSkipped, c.QueriesFailed,
		c.DomainsDone, c.DomainsSkipped, c.DomainsFailed,
		runID)
	if err != nil {
		return eris.Wrapf(err, "state: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "state: rows affected")
	}
	if n == 0 {
		return eris.Errorf("state: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at,
			queries_done, queries_skipped, queries_failed,
			domains_done, domains_skipped, domains_failed
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "state: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished,
			&r.Counts.QueriesDone, &r.Counts.QueriesSkipped, &r.Counts.QueriesFailed,
			&r.Counts.DomainsDone, &r.Counts.DomainsSkipped, &r.Counts.DomainsFailed); err != nil {
			return nil, eris.Wrap(err, "state: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "state: iterate runs")
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, q := range []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM queries`, &st.Queries},
		{`SELECT COUNT(*) FROM domains`, &st.Domains},
		{`SELECT COUNT(*) FROM attempts`, &st.Attempts},
		{`SELECT COUNT(*) FROM companies`, &st.Companies},
		{`SELECT COUNT(*) FROM emails`, &st.Emails},
	} {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return Stats{}, eris.Wrap(err, "state: stats")
		}
	}
	return st, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	for _, table := range []string{"queries", "domains", "attempts", "companies", "emails", "runs"} {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return eris.Wrapf(err, "state: clear %s", table)
		}
	}
	return nil
}
