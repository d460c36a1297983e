package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/actions"
	"github.com/Tymofiyyy/Super-Final-Bossa-Instagram-Automation-Project/distribution"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists state in a SQLite database. Timestamps are stored as
// unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Account workers write concurrently; a single connection serializes them
	// and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		username TEXT PRIMARY KEY,
		proxy TEXT,
		created_at INTEGER NOT NULL,
		last_used INTEGER
	);

	CREATE TABLE IF NOT EXISTS actions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_username TEXT NOT NULL,
		action_type TEXT NOT NULL,
		target_username TEXT NOT NULL,
		success BOOLEAN NOT NULL,
		details TEXT,
		timestamp INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		account_username TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		total_targets INTEGER NOT NULL,
		succeeded INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		success_rate REAL NOT NULL,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS target_distributions (
		session_id TEXT NOT NULL,
		account_username TEXT NOT NULL,
		target_username TEXT NOT NULL,
		position INTEGER NOT NULL,
		assigned_at INTEGER NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT 0,
		processed_at INTEGER,
		success BOOLEAN,
		PRIMARY KEY (session_id, account_username, target_username)
	);

	CREATE INDEX IF NOT EXISTS idx_actions_account_ts ON actions(account_username, timestamp);
	CREATE INDEX IF NOT EXISTS idx_sessions_session ON sessions(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveAccount inserts or updates an account.
func (s *SQLiteStore) SaveAccount(ctx context.Context, account Account) error {
	now := time.Now().UnixMilli()
	var lastUsed any
	if !account.LastUsed.IsZero() {
		lastUsed = account.LastUsed.UnixMilli()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (username, proxy, created_at, last_used)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			proxy = excluded.proxy,
			last_used = COALESCE(excluded.last_used, accounts.last_used)
	`, account.Username, account.Proxy, now, lastUsed)
	if err != nil {
		return fmt.Errorf("saving account %s: %w", account.Username, err)
	}
	return nil
}

// SaveDistribution replaces the stored assignment of sessionID.
func (s *SQLiteStore) SaveDistribution(ctx context.Context, sessionID string, d distribution.Distribution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM target_distributions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clearing distribution: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO target_distributions (session_id, account_username, target_username, position, assigned_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, account := range d.Accounts() {
		for i, target := range d.TargetsFor(account) {
			if _, err := stmt.ExecContext(ctx, sessionID, account, target, i, now); err != nil {
				return fmt.Errorf("saving assignment %s -> %s: %w", target, account, err)
			}
		}
	}
	return tx.Commit()
}

// HasDistribution reports whether sessionID has assignment rows.
func (s *SQLiteStore) HasDistribution(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM target_distributions WHERE session_id = ?)`, sessionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking distribution: %w", err)
	}
	return exists, nil
}

// GetTargetsForAccount returns the unprocessed targets of account in sessionID.
func (s *SQLiteStore) GetTargetsForAccount(ctx context.Context, account, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT target_username FROM target_distributions
		WHERE session_id = ? AND account_username = ? AND processed = 0
		ORDER BY position
	`, sessionID, account)
	if err != nil {
		return nil, fmt.Errorf("querying targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// MarkTargetProcessed flags a target as processed with its result.
func (s *SQLiteStore) MarkTargetProcessed(ctx context.Context, sessionID, account, target string, success bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE target_distributions
		SET processed = 1, processed_at = ?, success = ?
		WHERE session_id = ? AND account_username = ? AND target_username = ?
	`, time.Now().UnixMilli(), success, sessionID, account, target)
	if err != nil {
		return fmt.Errorf("marking %s processed: %w", target, err)
	}
	return nil
}

// RecordOutcome appends an action row.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, account string, outcome actions.Outcome) error {
	at := outcome.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (account_username, action_type, target_username, success, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, account, outcome.Category.String(), outcome.Target, outcome.Success, outcome.Detail, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}
	return nil
}

// CountActionsWithin counts successful actions of account with from <= timestamp < to.
func (s *SQLiteStore) CountActionsWithin(ctx context.Context, account string, from, to time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM actions
		WHERE account_username = ? AND success = 1 AND timestamp >= ? AND timestamp < ?
	`, account, from.UnixMilli(), to.UnixMilli()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting actions: %w", err)
	}
	return n, nil
}

// TodayActions groups today's successful actions of account by category.
func (s *SQLiteStore) TodayActions(ctx context.Context, account string, now time.Time) (map[actions.Category]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT action_type, COUNT(*) FROM actions
		WHERE account_username = ? AND success = 1 AND timestamp >= ?
		GROUP BY action_type
	`, account, startOfDay(now).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("querying today's actions: %w", err)
	}
	defer rows.Close()

	out := make(map[actions.Category]int)
	for rows.Next() {
		var (
			typ string
			n   int
		)
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		if c, ok := actions.ParseCategory(typ); ok {
			out[c] = n
		}
	}
	return out, rows.Err()
}

// SaveSession records one account run.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, account_username, started_at, ended_at,
			total_targets, succeeded, failed, success_rate, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Account, rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli(),
		rec.TotalTargets, rec.Succeeded, rec.Failed, rec.SuccessRate, rec.Error)
	if err != nil {
		return fmt.Errorf("saving session record: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_used = ? WHERE username = ?`,
		rec.EndedAt.UnixMilli(), rec.Account); err != nil {
		return fmt.Errorf("updating account last use: %w", err)
	}
	return nil
}

// Sessions returns the account runs recorded for sessionID.
func (s *SQLiteStore) Sessions(ctx context.Context, sessionID string) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, account_username, started_at, ended_at, total_targets,
			succeeded, failed, success_rate, COALESCE(error, '')
		FROM sessions WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRecord
	for rows.Next() {
		var (
			rec            SessionRecord
			started, ended int64
		)
		if err := rows.Scan(&rec.SessionID, &rec.Account, &started, &ended, &rec.TotalTargets,
			&rec.Succeeded, &rec.Failed, &rec.SuccessRate, &rec.Error); err != nil {
			return nil, err
		}
		rec.StartedAt = time.UnixMilli(started)
		rec.EndedAt = time.UnixMilli(ended)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CleanupOldData removes action rows and processed assignments older than before.
func (s *SQLiteStore) CleanupOldData(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UnixMilli()

	res, err := s.db.ExecContext(ctx, `DELETE FROM actions WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning actions: %w", err)
	}
	actionRows, _ := res.RowsAffected()

	res, err = s.db.ExecContext(ctx, `DELETE FROM target_distributions WHERE processed = 1 AND processed_at < ?`, cutoff)
	if err != nil {
		return actionRows, fmt.Errorf("cleaning distributions: %w", err)
	}
	distRows, _ := res.RowsAffected()

	return actionRows + distRows, nil
}
