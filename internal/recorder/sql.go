package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"KabuSentinel/internal/model"
)

// SQLRecorder writes history to SQLite or PostgreSQL.
type SQLRecorder struct {
	db     *sql.DB
	driver string
	mu     sync.Mutex
	logger zerolog.Logger
}

// Open connects to driver ("sqlite" or "postgres") and creates the tables.
func Open(driver, dsn string) (*SQLRecorder, error) {
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if driver == "sqlite" {
		if dir := sqliteDir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// single writer; WAL lets readers query while a pass is running
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	r := &SQLRecorder{
		db:     db,
		driver: driver,
		logger: log.With().Str("component", "recorder").Logger(),
	}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.logger.Info().Str("driver", driver).Msg("history recorder opened")
	return r, nil
}

// sqliteDir returns the directory of a file DSN ("data/history.db",
// "file:data/history.db?_pragma=..."), or "" for in-memory databases and the working directory.
func sqliteDir(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	path, _, _ = strings.Cut(path, "?")
	if path == "" || path == ":memory:" {
		return ""
	}
	if dir := filepath.Dir(path); dir != "." {
		return dir
	}
	return ""
}

func (r *SQLRecorder) migrate() error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	floatType := "REAL"
	if r.driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
		floatType = "DOUBLE PRECISION"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			mode        TEXT NOT NULL,
			started_at  BIGINT NOT NULL,
			finished_at BIGINT NOT NULL,
			closed      BOOLEAN NOT NULL,
			tickers     INTEGER,
			skipped     INTEGER,
			failed      INTEGER,
			signals     INTEGER,
			sent        BOOLEAN NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS signals (
			id         ` + serial + `,
			run_id     TEXT NOT NULL,
			ticker     TEXT NOT NULL,
			rule_id    TEXT NOT NULL,
			direction  TEXT NOT NULL,
			message    TEXT,
			strong     BOOLEAN NOT NULL,
			bar_time   BIGINT,
			close      ` + floatType + `,
			rsi        ` + floatType + `,
			macd_hist  ` + floatType + `,
			rci        ` + floatType + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_run ON signals(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker, bar_time)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLRecorder) RecordRun(run *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(r.rebind(`INSERT INTO runs
		(id, mode, started_at, finished_at, closed, tickers, skipped, failed, signals, sent)
		VALUES (?,?,?,?,?,?,?,?,?,?)`),
		run.ID, string(run.Mode), run.StartedAt.Unix(), run.FinishedAt.Unix(), run.Closed,
		run.Tickers, run.Skipped, run.Failed, run.Signals, run.Sent,
	)
	return err
}

// RecordSignals stores all signals of a run in one transaction.
func (r *SQLRecorder) RecordSignals(runID string, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(r.rebind(`INSERT INTO signals
		(run_id, ticker, rule_id, direction, message, strong, bar_time, close, rsi, macd_hist, rci)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`))
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, s := range signals {
		snap := s.Snapshot
		if _, err := stmt.Exec(runID, s.Ticker, s.RuleID, string(s.Direction), s.Message, s.Strong,
			s.BarTime.Unix(), nullFloat(snap.Close), nullFloat(snap.RSI),
			nullFloat(snap.MACDHist), nullFloat(snap.RCI9)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert signal %s/%s: %w", s.Ticker, s.RuleID, err)
		}
	}
	return tx.Commit()
}

func (r *SQLRecorder) Close() error {
	r.logger.Info().Msg("closing history recorder")
	return r.db.Close()
}

// rebind turns ? placeholders into $n for postgres.
func (r *SQLRecorder) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
