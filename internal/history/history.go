// Package history keeps a SQLite log of finished rounds.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/history/migrations"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"k8s.io/klog/v2"
	_ "modernc.org/sqlite"
)

// Entry is one stored round.
type Entry struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Number    int       `json:"number"`
	Outcome   bool      `json:"outcome"`
	Won       bool      `json:"won"`
	Pattern   string    `json:"pattern"`
	Final     game.Grid `json:"final"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Stats aggregates the stored rounds.
type Stats struct {
	Rounds     int     `json:"rounds"`
	Wins       int     `json:"wins"`
	Sessions   int     `json:"sessions"`
	WinRate    float64 `json:"win_rate"`
	Mismatches int     `json:"mismatches"` // Rounds where the evaluated win differs from the decided outcome.
}

// Store persists rounds in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the SQLite history at path and applies the embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Record inserts one finished round.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(e.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO rounds (session_id, number, outcome, won, pattern, final_grid, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Number, e.Outcome, e.Won, e.Pattern, encodeGrid(e.Final),
		toMillis(e.StartedAt), toMillis(e.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// Recent returns the last n rounds, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, session_id, number, outcome, won, pattern, final_grid, started_at, ended_at
FROM rounds ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e              Entry
			grid           string
			started, ended int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Number, &e.Outcome, &e.Won, &e.Pattern, &grid, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if e.Final, err = decodeGrid(grid); err != nil {
			return nil, fmt.Errorf("round %d: %w", e.ID, err)
		}
		e.StartedAt, e.EndedAt = fromMillis(started), fromMillis(ended)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats aggregates every stored round.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(won), 0), COUNT(DISTINCT session_id), COALESCE(SUM(won <> outcome), 0)
FROM rounds`).Scan(&st.Rounds, &st.Wins, &st.Sessions, &st.Mismatches)
	if err != nil {
		return st, fmt.Errorf("query stats: %w", err)
	}
	if st.Rounds > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Rounds)
	}
	return st, nil
}

// Observer returns a machine.Observer storing every finished round. Failures
// are logged: losing history never stops the game.
func (s *Store) Observer() machine.Observer {
	return machine.ObserverFunc(func(ctx context.Context, r machine.Result) {
		err := s.Record(ctx, Entry{
			SessionID: r.SessionID,
			Number:    r.Number,
			Outcome:   r.Outcome,
			Won:       r.Won,
			Pattern:   r.Pattern,
			Final:     r.Final,
			StartedAt: r.StartedAt,
			EndedAt:   r.EndedAt,
		})
		if err != nil {
			klog.Errorf("history: failed to record round %d of session %s: %v", r.Number, r.SessionID, err)
		}
	})
}

// encodeGrid stores the grid column by column as 9 hex symbols.
func encodeGrid(g game.Grid) string {
	parts := make([]string, 0, game.Cols*game.Rows)
	for col := range game.Cols {
		for row := range game.Rows {
			parts = append(parts, fmt.Sprintf("%04x", uint16(g[col][row])))
		}
	}
	return strings.Join(parts, ",")
}

func decodeGrid(s string) (game.Grid, error) {
	var g game.Grid
	parts := strings.Split(s, ",")
	if len(parts) != game.Cols*game.Rows {
		return g, fmt.Errorf("grid %q: want %d symbols, got %d", s, game.Cols*game.Rows, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 16)
		if err != nil {
			return g, fmt.Errorf("grid %q: symbol %d: %w", s, i, err)
		}
		g[i/game.Rows][i%game.Rows] = game.Symbol(v)
	}
	return g, nil
}

// applyMigrations executes the Up section of every embedded migration not
// yet recorded in schema_migrations.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	if _, err := sqlDB.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		var count int
		if err := sqlDB.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE name = ?`, file).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.Exec(upSection(string(content))); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, file, toMillis(time.Now())); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	start := strings.Index(content, up)
	if start == -1 {
		return content
	}
	content = content[start+len(up):]
	if end := strings.Index(content, down); end != -1 {
		content = content[:end]
	}
	return content
}
