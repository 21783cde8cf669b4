// Package migrate applies the SQL schema under migrations/ with goose. The
// files are embedded so every binary migrates without a checkout on disk.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"

	"github.com/pressly/goose/v3"
)

// DefaultDir is where `cmd/migrate -cmd=create` writes new files, relative
// to the repository root.
const DefaultDir = "pkg/migrate/migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations exposes the embedded SQL files rooted at the migrations directory.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// Migrator wraps a goose provider bound to the embedded schema.
type Migrator struct {
	provider *goose.Provider
}

func New(db *sql.DB) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, Migrations())
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Step reports one applied or rolled back migration.
type Step struct {
	Version   int64
	Path      string
	Direction string
	Empty     bool
}

func (m *Migrator) Up(ctx context.Context) ([]Step, error) {
	results, err := m.provider.Up(ctx)
	return steps(results), wrapResult("up", err)
}

func (m *Migrator) Down(ctx context.Context) ([]Step, error) {
	result, err := m.provider.Down(ctx)
	if result == nil {
		return nil, wrapResult("down", err)
	}
	return steps([]*goose.MigrationResult{result}), wrapResult("down", err)
}

// To moves the schema up or down until target is the newest applied version.
func (m *Migrator) To(ctx context.Context, target string) ([]Step, error) {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	current, err := m.provider.GetDBVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get db version: %w", err)
	}
	switch {
	case current == version:
		return nil, nil
	case current < version:
		results, err := m.provider.UpTo(ctx, version)
		return steps(results), wrapResult("up-to", err)
	default:
		results, err := m.provider.DownTo(ctx, version)
		return steps(results), wrapResult("down-to", err)
	}
}

// Status describes one known migration and whether it has been applied.
type Status struct {
	Version int64
	Path    string
	Applied bool
}

func (m *Migrator) Status(ctx context.Context) ([]Status, error) {
	rows, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("goose status: %w", err)
	}
	out := make([]Status, 0, len(rows))
	for _, row := range rows {
		out = append(out, Status{
			Version: row.Source.Version,
			Path:    row.Source.Path,
			Applied: row.State == goose.StateApplied,
		})
	}
	return out, nil
}

func steps(results []*goose.MigrationResult) []Step {
	out := make([]Step, 0, len(results))
	for _, r := range results {
		out = append(out, Step{
			Version:   r.Source.Version,
			Path:      r.Source.Path,
			Direction: r.Direction,
			Empty:     r.Empty,
		})
	}
	return out
}

func wrapResult(op string, err error) error {
	if err == nil || errors.Is(err, goose.ErrNoNextVersion) {
		return nil
	}
	return fmt.Errorf("goose %s: %w", op, err)
}
