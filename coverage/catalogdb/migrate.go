// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package catalogdb

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/private/dbutil"
	"github.com/Geomatys/geotoolkit-sub012/private/migrate"
)

// MigrateToLatest migrates the catalog database to the latest version.
func (db *catalogDB) MigrateToLatest(ctx context.Context) (err error) {
	defer mon.Task()(&ctx)(&err)

	migration := db.Migration()
	if err := migration.Run(ctx, db.log.Named("migrate"), db.db, db.impl); err != nil {
		return Error.Wrap(err)
	}
	return nil
}

// CheckVersion confirms the database is at the desired version.
func (db *catalogDB) CheckVersion(ctx context.Context) error {
	migration := db.Migration()
	return migration.ValidateVersions(ctx, db.log, db.db, db.impl)
}

// Migration returns the steps creating the catalog schema.
func (db *catalogDB) Migration() *migrate.Migration {
	return &migrate.Migration{
		Table: "versions",
		Steps: []*migrate.Step{
			{
				Description: "Initial setup",
				Version:     0,
				Action: migrate.Dialects{
					dbutil.SQLite3:  initialSchema("INTEGER PRIMARY KEY AUTOINCREMENT"),
					dbutil.Postgres: initialSchema("BIGSERIAL PRIMARY KEY"),
				},
			},
			{
				Description: "Index rasters by grid geometry and series by product",
				Version:     1,
				Action: migrate.SQL{
					`CREATE INDEX rasters_grid_index ON rasters ( grid )`,
					`CREATE INDEX series_product_index ON series ( product )`,
				},
			},
			{
				Description: "Add a unique content digest to formats",
				Version:     2,
				Action:      migrate.Func(db.addFormatContent),
			},
		},
	}
}

// addFormatContent adds the content digest of formats and fills it for the
// existing rows. A format duplicating an earlier one keeps a NULL digest.
func (db *catalogDB) addFormatContent(ctx context.Context, log *zap.Logger, impl dbutil.Implementation, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `ALTER TABLE formats ADD COLUMN content TEXT`); err != nil {
		return err
	}

	q := rebinder{impl: impl, q: tx}
	rows, err := q.QueryContext(ctx, `SELECT name, driver FROM formats ORDER BY name`)
	if err != nil {
		return err
	}
	existing, err := collect(rows, func(rows *sql.Rows) (format coverage.Format, err error) {
		return format, rows.Scan(&format.Name, &format.Driver)
	})
	if err != nil {
		return err
	}

	seen := map[string]string{}
	for _, format := range existing {
		format.Bands, err = db.formats.bands(ctx, q, format.Name)
		if err != nil {
			return err
		}
		content := format.ContentKey()
		if first, ok := seen[content]; ok {
			log.Warn("Format duplicates another one",
				zap.String("format", format.Name),
				zap.String("original", first))
			continue
		}
		seen[content] = format.Name
		if _, err := q.ExecContext(ctx, `UPDATE formats SET content = ? WHERE name = ?`, content, format.Name); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `CREATE UNIQUE INDEX formats_content_index ON formats ( content )`)
	return err
}

func initialSchema(serial string) migrate.SQL {
	statements := migrate.SQL{
		`CREATE TABLE products (
			name TEXT NOT NULL,
			PRIMARY KEY ( name )
		)`,
		`CREATE TABLE formats (
			name TEXT NOT NULL,
			driver TEXT NOT NULL,
			PRIMARY KEY ( name )
		)`,
		`CREATE TABLE sample_dimensions (
			format TEXT NOT NULL REFERENCES formats( name ) ON DELETE CASCADE,
			band INTEGER NOT NULL,
			name TEXT NOT NULL,
			lower_sample BIGINT NOT NULL,
			upper_sample BIGINT NOT NULL,
			scale DOUBLE PRECISION NOT NULL,
			offset_value DOUBLE PRECISION NOT NULL,
			transfer TEXT NOT NULL,
			units TEXT NOT NULL,
			PRIMARY KEY ( format, band )
		)`,
		`CREATE TABLE additional_axes (
			name TEXT NOT NULL,
			datum TEXT NOT NULL,
			direction TEXT NOT NULL,
			units TEXT NOT NULL,
			bounds TEXT NOT NULL,
			PRIMARY KEY ( name ),
			UNIQUE ( datum, direction, units, bounds )
		)`,
		`CREATE TABLE grid_geometries (
			identifier SERIAL,
			width INTEGER NOT NULL,
			height INTEGER NOT NULL,
			scale_x DOUBLE PRECISION NOT NULL,
			shear_y DOUBLE PRECISION NOT NULL,
			shear_x DOUBLE PRECISION NOT NULL,
			scale_y DOUBLE PRECISION NOT NULL,
			translate_x DOUBLE PRECISION NOT NULL,
			translate_y DOUBLE PRECISION NOT NULL,
			crs TEXT NOT NULL,
			axes TEXT NOT NULL,
			UNIQUE ( width, height, scale_x, shear_y, shear_x, scale_y, translate_x, translate_y, crs, axes )
		)`,
		`CREATE TABLE series (
			identifier SERIAL,
			product TEXT NOT NULL REFERENCES products( name ) ON DELETE CASCADE,
			directory TEXT NOT NULL,
			extension TEXT NOT NULL,
			format TEXT NOT NULL REFERENCES formats( name ),
			UNIQUE ( product, directory, extension, format )
		)`,
		`CREATE TABLE rasters (
			series BIGINT NOT NULL REFERENCES series( identifier ) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			image_index INTEGER NOT NULL,
			start_time BIGINT,
			end_time BIGINT,
			grid BIGINT NOT NULL REFERENCES grid_geometries( identifier ),
			PRIMARY KEY ( series, filename, image_index )
		)`,
	}
	for i, statement := range statements {
		statements[i] = strings.ReplaceAll(statement, "SERIAL", serial)
	}
	return statements
}
