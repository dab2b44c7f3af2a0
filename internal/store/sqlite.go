package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"pattern-scanner/internal/analysis/scoring"
	"pattern-scanner/internal/errors"
	"pattern-scanner/internal/models"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candles table for imported OHLCV data
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(symbol, timeframe, timestamp)
	);

	-- One row per screener invocation
	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		timeframe TEXT NOT NULL,
		regime TEXT NOT NULL,
		symbols INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		candidates INTEGER NOT NULL
	);

	-- Scored candidates of each run
	CREATE TABLE IF NOT EXISTS scan_candidates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		timeframe TEXT NOT NULL,
		pattern_type TEXT NOT NULL,
		score REAL NOT NULL,
		grade TEXT NOT NULL,
		confidence REAL NOT NULL,
		strong INTEGER NOT NULL DEFAULT 0,
		detected_at DATETIME NOT NULL,
		payload TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES scan_runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_candles_symbol_tf ON candles(symbol, timeframe, timestamp);
	CREATE INDEX IF NOT EXISTS idx_candidates_pattern ON scan_candidates(pattern_type, score DESC);
	CREATE INDEX IF NOT EXISTS idx_candidates_run ON scan_candidates(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCandles upserts bars for a symbol and timeframe and returns the number
// written.
func (s *SQLiteStore) SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, dbError("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO candles (symbol, timeframe, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, dbError("prepare statement", err)
	}
	defer stmt.Close()

	written := 0
	for _, c := range candles {
		if !c.Valid() {
			return 0, errors.NewDataError("bars", symbol,
				fmt.Sprintf("bar at %s has a missing field", c.Timestamp.Format(time.RFC3339)), errors.ErrMissingColumns)
		}
		_, err := stmt.ExecContext(ctx, symbol, timeframe, c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			return 0, dbError("insert candle", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, dbError("commit transaction", err)
	}

	return written, nil
}

// GetCandles returns bars in [from, to] ordered by time. A zero bound is
// open.
func (s *SQLiteStore) GetCandles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error) {
	query := `
		SELECT timestamp, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND timeframe = ?`
	args := []interface{}{symbol, timeframe}
	if !from.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, to.UTC())
	}
	query += " ORDER BY timestamp ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query candles", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, dbError("scan candle", err)
		}
		c.Timestamp = c.Timestamp.UTC()
		candles = append(candles, c)
	}

	if err := rows.Err(); err != nil {
		return nil, dbError("iterate candles", err)
	}
	if len(candles) == 0 {
		return nil, errors.NewDataError("bars", symbol, "no bars for timeframe "+timeframe, errors.ErrSymbolNotFound)
	}

	return candles, nil
}

// GetCandlesFreshness returns the timestamp of the latest stored bar.
func (s *SQLiteStore) GetCandlesFreshness(ctx context.Context, symbol, timeframe string) (time.Time, error) {
	var timestamp sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM candles WHERE symbol = ? AND timeframe = ?
	`, symbol, timeframe).Scan(&timestamp)
	if err != nil && err != sql.ErrNoRows {
		return time.Time{}, dbError("get candles freshness", err)
	}
	if !timestamp.Valid {
		return time.Time{}, nil
	}
	return parseTimestamp(timestamp.String)
}

// ListSymbols summarises stored bars per symbol. An empty timeframe lists
// every timeframe.
func (s *SQLiteStore) ListSymbols(ctx context.Context, timeframe string) ([]SymbolInfo, error) {
	query := `
		SELECT symbol, timeframe, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles`
	var args []interface{}
	if timeframe != "" {
		query += " WHERE timeframe = ?"
		args = append(args, timeframe)
	}
	query += " GROUP BY symbol, timeframe ORDER BY symbol, timeframe"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("list symbols", err)
	}
	defer rows.Close()

	var out []SymbolInfo
	for rows.Next() {
		var info SymbolInfo
		var first, last string
		if err := rows.Scan(&info.Symbol, &info.Timeframe, &info.Bars, &first, &last); err != nil {
			return nil, dbError("scan symbol", err)
		}
		if info.First, err = parseTimestamp(first); err != nil {
			return nil, err
		}
		if info.Last, err = parseTimestamp(last); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteCandles removes every bar of a symbol and timeframe.
func (s *SQLiteStore) DeleteCandles(ctx context.Context, symbol, timeframe string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM candles WHERE symbol = ? AND timeframe = ?`, symbol, timeframe)
	if err != nil {
		return 0, dbError("delete candles", err)
	}
	return res.RowsAffected()
}

// SaveScanRun stores a run and its candidates in one transaction. An empty
// run ID is replaced with a new UUID.
func (s *SQLiteStore) SaveScanRun(ctx context.Context, run *ScanRun, candidates []scoring.ScoredCandidate) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.Candidates = len(candidates)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return dbError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, started_at, finished_at, timeframe, regime, symbols, rejected, candidates)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Timeframe, string(run.Regime), run.Symbols, run.Rejected, run.Candidates)
	if err != nil {
		return dbError("insert scan run", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scan_candidates (run_id, symbol, timeframe, pattern_type, score, grade, confidence, strong, detected_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return dbError("prepare statement", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		payload, err := json.Marshal(c)
		if err != nil {
			return errors.Wrapf(err, "encoding %s candidate for %s", c.Type, c.Symbol)
		}
		_, err = stmt.ExecContext(ctx, run.ID, c.Symbol, c.Timeframe, string(c.Type), c.Score, string(c.Grade),
			c.Confidence, c.Strong, c.DetectedAt.UTC(), string(payload))
		if err != nil {
			return dbError("insert candidate", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return dbError("commit transaction", err)
	}
	return nil
}

// GetScanRun returns one run by ID.
func (s *SQLiteStore) GetScanRun(ctx context.Context, id string) (*ScanRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, timeframe, regime, symbols, rejected, candidates
		FROM scan_runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrDataNotFound, "scan run %s", id)
	}
	if err != nil {
		return nil, dbError("get scan run", err)
	}
	return run, nil
}

// ListScanRuns returns the most recent runs first.
func (s *SQLiteStore) ListScanRuns(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, timeframe, regime, symbols, rejected, candidates
		FROM scan_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, dbError("list scan runs", err)
	}
	defer rows.Close()

	var runs []ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, dbError("scan run", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*ScanRun, error) {
	var run ScanRun
	var regime string
	err := row.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Timeframe, &regime,
		&run.Symbols, &run.Rejected, &run.Candidates)
	if err != nil {
		return nil, err
	}
	run.Regime = models.MarketRegime(regime)
	run.StartedAt = run.StartedAt.UTC()
	run.FinishedAt = run.FinishedAt.UTC()
	return &run, nil
}

// TopCandidates returns persisted candidates ordered by score, then
// confidence, then most recent detection.
func (s *SQLiteStore) TopCandidates(ctx context.Context, filter CandidateFilter) ([]StoredCandidate, error) {
	var where []string
	var args []interface{}
	if filter.Pattern != "" {
		where = append(where, "pattern_type = ?")
		args = append(args, filter.Pattern)
	}
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.MinScore > 0 {
		where = append(where, "score >= ?")
		args = append(args, filter.MinScore)
	}

	query := `
		SELECT run_id, symbol, timeframe, pattern_type, score, grade, confidence, strong, detected_at, payload
		FROM scan_candidates`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY score DESC, confidence DESC, detected_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError("query candidates", err)
	}
	defer rows.Close()

	var out []StoredCandidate
	for rows.Next() {
		var c StoredCandidate
		var payload string
		if err := rows.Scan(&c.RunID, &c.Symbol, &c.Timeframe, &c.Pattern, &c.Score, &c.Grade,
			&c.Confidence, &c.Strong, &c.DetectedAt, &payload); err != nil {
			return nil, dbError("scan candidate", err)
		}
		if err := json.Unmarshal([]byte(payload), &c.Candidate); err != nil {
			return nil, errors.Wrapf(err, "decoding candidate payload of run %s", c.RunID)
		}
		c.DetectedAt = c.DetectedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// sqliteTimestampLayouts are the formats go-sqlite3 writes time.Time values
// in; aggregates such as MAX() return them as plain text.
var sqliteTimestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range sqliteTimestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Wrapf(errors.ErrDatabaseError, "unparseable timestamp %q", s)
}

func dbError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %v", errors.ErrDatabaseError, op, err)
}
