package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/iudanet/shelfsync/internal/clock"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage represents SQLite storage implementation
type Storage struct {
	db     *sql.DB
	clock  *clock.Clock
	logger *slog.Logger
}

// New creates a new SQLite storage instance and applies pending migrations.
// clk stamps changed_at and asOf; nil means a wall clock.
func New(ctx context.Context, dbPath string, clk *clock.Clock, logger *slog.Logger) (*Storage, error) {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Открываем соединение с БД
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Единственное соединение: все транзакции выполняются последовательно,
	// поэтому asOf, прочитанный внутри pull, не обгоняет незакоммиченный push
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Storage{db: db, clock: clk, logger: logger}

	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// После рестарта часы не должны вернуться назад относительно выданных asOf
	var last int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(changed_at), 0) FROM entities`).Scan(&last); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to read last change time: %w", err)
	}
	if last > 0 {
		clk.Observe(time.Unix(0, last))
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// runMigrations выполняет миграции из embedded FS
func (s *Storage) runMigrations(ctx context.Context) error {
	migrations, err := fs.Sub(embedMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	for _, r := range results {
		s.logger.Info("applied migration",
			slog.String("source", r.Source.Path),
			slog.Duration("duration", r.Duration))
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// nanos converts a time to the stored representation; zero time is 0
func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

// fromNanos is the inverse of nanos
func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
