// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package migrate runs versioned schema migrations. There is no way back:
// steps are only ever applied forward.
package migrate

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil/txutil"
)

var (
	mon = monkit.Package()

	// Error is the default migrate errs class.
	Error = errs.Class("migrate")
	// ErrValidateVersionMismatch is returned when the database is behind the migration.
	ErrValidateVersionMismatch = errs.Class("migrate version mismatch")

	tableName = regexp.MustCompile(`^[a-z_]+$`)
)

// Migration is a list of steps ordered by strictly increasing version. The
// versions already applied are recorded in Table.
type Migration struct {
	Table string
	Steps []*Step
}

// Step is one versioned change to the schema.
type Step struct {
	Description string
	Version     int
	Action      Action
}

// Action changes the database inside the transaction of its step.
type Action interface {
	Run(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error
}

// Latest returns the version of the last step, or -1 without steps.
func (migration *Migration) Latest() int {
	if len(migration.Steps) == 0 {
		return -1
	}
	return migration.Steps[len(migration.Steps)-1].Version
}

func (migration *Migration) validate() error {
	if !tableName.MatchString(migration.Table) {
		return Error.New("invalid table name: %q", migration.Table)
	}
	for i := 1; i < len(migration.Steps); i++ {
		if migration.Steps[i].Version <= migration.Steps[i-1].Version {
			return Error.New("step %d does not follow step %d",
				migration.Steps[i].Version, migration.Steps[i-1].Version)
		}
	}
	return nil
}

// Run applies the steps newer than the version of the database, each in a
// transaction of its own.
func (migration *Migration) Run(ctx context.Context, log *zap.Logger, db *sql.DB, impl dbutil.Implementation) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := migration.validate(); err != nil {
		return err
	}

	version, err := migration.CurrentVersion(ctx, db, impl)
	if err != nil {
		return err
	}
	created := version < 0

	applied := 0
	for _, step := range migration.Steps {
		if step.Version <= version {
			continue
		}
		stepLog := log.Named(strconv.Itoa(step.Version))
		if !created {
			stepLog.Info(step.Description)
		}

		err := txutil.WithTx(ctx, db, nil, func(ctx context.Context, tx *sql.Tx) error {
			if err := step.Action.Run(ctx, stepLog, impl, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				dbutil.Rebind(impl, `INSERT INTO `+migration.Table+` (version, committed_at) VALUES (?, ?)`),
				step.Version, time.Now().UTC().Format(time.RFC3339Nano))
			return err
		})
		if err != nil {
			return Error.New("step %d (%s): %v", step.Version, step.Description, err)
		}
		applied++
	}

	switch {
	case created:
		log.Info("Database created", zap.Int("version", migration.Latest()))
	case applied > 0:
		log.Info("Database migrated", zap.Int("version", migration.Latest()), zap.Int("steps", applied))
	default:
		log.Debug("Database up to date", zap.Int("version", version))
	}
	return nil
}

// ValidateVersions checks that every step has been applied to the database.
func (migration *Migration) ValidateVersions(ctx context.Context, log *zap.Logger, db *sql.DB, impl dbutil.Implementation) error {
	version, err := migration.CurrentVersion(ctx, db, impl)
	if err != nil {
		return err
	}
	if latest := migration.Latest(); version < latest {
		return ErrValidateVersionMismatch.New("database is at version %d, expected %d", version, latest)
	}
	log.Debug("Database version is up to date", zap.Int("version", version))
	return nil
}

// CurrentVersion returns the newest version applied to the database, or -1
// when none was.
func (migration *Migration) CurrentVersion(ctx context.Context, db *sql.DB, impl dbutil.Implementation) (int, error) {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migration.Table+` (version INTEGER, committed_at TEXT)`)
	if err != nil {
		return -1, Error.New("creating version table failed: %v", err)
	}

	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM `+migration.Table).Scan(&version); err != nil {
		return -1, Error.Wrap(err)
	}
	if !version.Valid {
		return -1, nil
	}
	return int(version.Int64), nil
}

// SQL is a list of statements run in order.
type SQL []string

// Run runs the statements.
func (statements SQL) Run(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error {
	for _, query := range statements {
		if _, err := tx.ExecContext(ctx, dbutil.Rebind(impl, query)); err != nil {
			return errs.Wrap(err)
		}
	}
	return nil
}

// Dialects selects the statements to run by database implementation.
type Dialects map[dbutil.Implementation]SQL

// Run runs the statements of impl.
func (dialects Dialects) Run(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error {
	statements, ok := dialects[impl]
	if !ok {
		return Error.New("no statements for %v", impl)
	}
	return statements.Run(ctx, log, impl, tx)
}

// Func is an arbitrary action.
type Func func(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error

// Run calls fn.
func (fn Func) Run(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error {
	return fn(ctx, log, impl, tx)
}
