// Package migrate reconciles the relational schema.
//
// The schema comes from two sources: the table descriptors derived from the
// row types (version 1, generated) and hand-written statements the descriptor
// model cannot express (version 2, supplemental). Each migration runs in one
// transaction together with its ledger row in schema_migrations, and every
// step tolerates having been applied before. Migrations are forward-only.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/varubogu/flequit-sub003/internal/logging"
	"github.com/varubogu/flequit-sub003/internal/relational"
	"github.com/varubogu/flequit-sub003/internal/storeerr"
)

// LedgerTable records applied migrations.
const LedgerTable = "schema_migrations"

// Kind tells where a migration came from.
type Kind string

const (
	KindGenerated    Kind = "generated"
	KindSupplemental Kind = "supplemental"
)

// Migration is one versioned, transactional schema change.
type Migration struct {
	Version     int
	Kind        Kind
	Description string
	Steps       []Step
}

// LedgerEntry is one row of the ledger.
type LedgerEntry struct {
	Version     int
	Kind        Kind
	Description string
	AppliedAt   time.Time
}

// Reconciler applies pending migrations to a database.
type Reconciler struct {
	db         *relational.DB
	migrations []Migration
	log        *logging.Logger
}

// New returns a reconciler for the generated schema of tables followed by
// the supplemental statements.
func New(db *relational.DB, tables []*relational.TableDef, log *logging.Logger) *Reconciler {
	return NewWithMigrations(db, []Migration{
		Generated(1, tables),
		Supplemental(2),
	}, log)
}

// NewWithMigrations returns a reconciler for an explicit migration list.
func NewWithMigrations(db *relational.DB, migrations []Migration, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.Discard()
	}
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Reconciler{db: db, migrations: sorted, log: log.With("migrate")}
}

// Migrate is a relational.MigrateFunc applying the full schema.
func Migrate(log *logging.Logger) relational.MigrateFunc {
	return func(ctx context.Context, db *relational.DB) error {
		_, err := New(db, relational.Tables(), log).Run(ctx)
		return err
	}
}

// Target returns the highest known version.
func (r *Reconciler) Target() int {
	if len(r.migrations) == 0 {
		return 0
	}
	return r.migrations[len(r.migrations)-1].Version
}

// Run applies every migration newer than the ledger and returns how many it
// applied. Once the ledger shows the target version it does nothing.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return 0, err
	}

	current, err := r.Current(ctx)
	if err != nil {
		return 0, err
	}
	if current >= r.Target() {
		r.log.Debugf("schema at version %d, nothing to do", current)
		return 0, nil
	}

	applied := 0
	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.apply(ctx, m); err != nil {
			return applied, err
		}
		applied++
		r.log.Infof("applied migration %d (%s): %s", m.Version, m.Kind, m.Description)
	}
	return applied, nil
}

func (r *Reconciler) ensureLedger(ctx context.Context) error {
	stmt := `CREATE TABLE IF NOT EXISTS ` + LedgerTable + ` (
		version INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`
	if err := r.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create migration ledger: %w", err)
	}
	return nil
}

func (r *Reconciler) apply(ctx context.Context, m Migration) error {
	err := r.db.Tx(ctx, func(tx *sql.Tx) error {
		for _, step := range m.Steps {
			if err := step.Apply(ctx, tx); err != nil {
				return fmt.Errorf("%s: %w", step, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO `+LedgerTable+` (version, kind, description) VALUES (?, ?, ?)`,
			m.Version, string(m.Kind), m.Description)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}
	err = fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Kind, err)
	if storeerr.KindOf(err) == storeerr.KindUnknown {
		return storeerr.New(storeerr.KindStorage, "migrate", err)
	}
	return err
}

// Current returns the highest applied version, 0 for a fresh database.
func (r *Reconciler) Current(ctx context.Context) (int, error) {
	var v int
	err := r.db.RawDB().QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM `+LedgerTable).Scan(&v)
	if err != nil {
		return 0, storeerr.New(storeerr.KindStorage, "migrate", fmt.Errorf("failed to read migration ledger: %w", err))
	}
	return v, nil
}

// Ledger lists the applied migrations in version order.
func (r *Reconciler) Ledger(ctx context.Context) ([]LedgerEntry, error) {
	if err := r.ensureLedger(ctx); err != nil {
		return nil, err
	}

	rows, err := r.db.RawDB().QueryContext(ctx, `SELECT version, kind, description, applied_at FROM `+LedgerTable+` ORDER BY version`)
	if err != nil {
		return nil, storeerr.New(storeerr.KindStorage, "ledger", err)
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var kind, appliedAt string
		if err := rows.Scan(&e.Version, &kind, &e.Description, &appliedAt); err != nil {
			return nil, storeerr.New(storeerr.KindStorage, "ledger", fmt.Errorf("failed to scan ledger row: %w", err))
		}
		e.Kind = Kind(kind)
		// CURRENT_TIMESTAMP is "YYYY-MM-DD HH:MM:SS" in UTC
		if t, err := time.Parse(time.DateTime, appliedAt); err == nil {
			e.AppliedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeerr.New(storeerr.KindStorage, "ledger", err)
	}
	return entries, nil
}
