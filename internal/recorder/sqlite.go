package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"CryptoLens/internal/model"
)

// SQLiteRecorder persists analyses and provider attempts to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets dashboards read while the service writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			run_id             TEXT PRIMARY KEY,
			timestamp          INTEGER NOT NULL,
			pair               TEXT NOT NULL,
			timeframe          TEXT NOT NULL,
			source             TEXT,
			bars               INTEGER,
			price              REAL,
			ma20               REAL,
			ma50               REAL,
			rsi                REAL,
			trend              TEXT,
			trend_strength     REAL,
			support            REAL,
			resistance         REAL,
			recommendation     TEXT,
			narrative_fallback INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_pair_ts ON analyses(pair, timeframe, timestamp)`,

		`CREATE TABLE IF NOT EXISTS provider_attempts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			provider    TEXT NOT NULL,
			pair        TEXT,
			timeframe   TEXT,
			outcome     TEXT,
			error       TEXT,
			duration_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ts ON provider_attempts(timestamp)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordAnalysis(rec *AnalysisRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := rec.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.Exec(`INSERT INTO analyses
		(run_id, timestamp, pair, timeframe, source, bars, price, ma20, ma50, rsi,
		 trend, trend_strength, support, resistance, recommendation, narrative_fallback)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.RunID, ts.UnixMilli(), rec.Pair, rec.Timeframe, rec.Source, rec.Bars,
		rec.Price, rec.MA20, rec.MA50, rec.RSI,
		rec.Trend, rec.TrendStrength, rec.Support, rec.Resistance,
		rec.Recommendation, rec.NarrativeFallback,
	)
	return err
}

func (r *SQLiteRecorder) RecordAttempt(a *model.FetchAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts := a.At
	if ts.IsZero() {
		ts = time.Now()
	}
	var errText string
	if a.Err != nil {
		errText = a.Err.Error()
	}
	_, err := r.db.Exec(`INSERT INTO provider_attempts
		(timestamp, provider, pair, timeframe, outcome, error, duration_ms)
		VALUES (?,?,?,?,?,?,?)`,
		ts.UnixMilli(), a.Provider, a.Pair.String(), string(a.Timeframe),
		string(a.Outcome), errText, a.Duration.Milliseconds(),
	)
	return err
}

func (r *SQLiteRecorder) RecentAnalyses(pair, timeframe string, n int) ([]AnalysisRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT run_id, timestamp, pair, timeframe, source, bars,
		price, ma20, ma50, rsi, trend, trend_strength, support, resistance,
		recommendation, narrative_fallback
		FROM analyses WHERE pair = ? AND timeframe = ?
		ORDER BY timestamp DESC LIMIT ?`, pair, timeframe, n)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	var out []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		var ts int64
		if err := rows.Scan(&rec.RunID, &ts, &rec.Pair, &rec.Timeframe, &rec.Source, &rec.Bars,
			&rec.Price, &rec.MA20, &rec.MA50, &rec.RSI, &rec.Trend, &rec.TrendStrength,
			&rec.Support, &rec.Resistance, &rec.Recommendation, &rec.NarrativeFallback); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		rec.CreatedAt = time.UnixMilli(ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AttemptCount returns how many attempts were logged for provider.
func (r *SQLiteRecorder) AttemptCount(provider string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM provider_attempts WHERE provider = ?`, provider).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
