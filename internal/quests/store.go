// Package quests persists per-wallet completion state in a local
// sqlite database.
package quests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	_ "modernc.org/sqlite"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the completion database at path. The parent
// directory is created when missing.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS completed_wallets (
			address TEXT NOT NULL,
			module TEXT NOT NULL,
			completed_count INTEGER NOT NULL,
			target_count INTEGER NOT NULL,
			completed_at TIMESTAMP NOT NULL,
			last_check TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (address, module)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_completed_wallets_module ON completed_wallets(module);`,
		`CREATE INDEX IF NOT EXISTS idx_completed_wallets_completed_at ON completed_wallets(completed_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// IsCompleted reports whether the wallet has finished the module.
func (s *Store) IsCompleted(ctx context.Context, address common.Address, module string) (bool, error) {
	var completed, target int
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_count, target_count FROM completed_wallets WHERE address = ? AND module = ?`,
		address.Hex(), module,
	).Scan(&completed, &target)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query completed_wallets: %w", err)
	}
	return completed >= target, nil
}

// MarkCompleted records the wallet's completion state, replacing any
// previous row for the same wallet and module.
func (s *Store) MarkCompleted(ctx context.Context, address common.Address, module string, completed, target int) error {
	now := s.now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO completed_wallets
			(address, module, completed_count, target_count, completed_at, last_check)
			VALUES (?, ?, ?, ?, ?, ?)`,
		address.Hex(), module, completed, target, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert completed_wallets: %w", err)
	}
	return nil
}

// Progress is one row of the completion table.
type Progress struct {
	Address        string
	Module         string
	CompletedCount int
	TargetCount    int
	CompletedAt    time.Time
	LastCheck      time.Time
	CreatedAt      time.Time
}

// Progress returns the wallet's row, or nil when none exists.
func (s *Store) Progress(ctx context.Context, address common.Address, module string) (*Progress, error) {
	var (
		p                  Progress
		completedAt        string
		lastCheck, created sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT address, module, completed_count, target_count, completed_at, last_check, created_at
			FROM completed_wallets WHERE address = ? AND module = ?`,
		address.Hex(), module,
	).Scan(&p.Address, &p.Module, &p.CompletedCount, &p.TargetCount, &completedAt, &lastCheck, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query completed_wallets: %w", err)
	}
	p.CompletedAt = parseStamp(completedAt)
	if lastCheck.Valid {
		p.LastCheck = parseStamp(lastCheck.String)
	}
	if created.Valid {
		p.CreatedAt = parseStamp(created.String)
	}
	return &p, nil
}

// parseStamp accepts both RFC3339 writes and sqlite's
// CURRENT_TIMESTAMP format.
func parseStamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
