// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/pkg/process"
)

var (
	setupCmd = &cobra.Command{
		Use:         "setup",
		Short:       "Create or update the catalog schema",
		Args:        cobra.NoArgs,
		RunE:        cmdSetup,
		Annotations: map[string]string{"type": "setup"},
	}

	setupCfg struct {
		SaveConfig bool `help:"save the catalog settings to the config file" default:"false" setup:"true"`
	}
)

func cmdSetup(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.MigrateToLatest(ctx); err != nil {
		return err
	}

	if !setupCfg.SaveConfig {
		return nil
	}

	configFile := cmd.Flags().Lookup("config").Value.String()
	if err := os.MkdirAll(filepath.Dir(configFile), 0700); err != nil {
		return err
	}
	zap.L().Info("Saving configuration", zap.String("path", configFile))
	return process.SaveConfig(cmd, configFile, map[string]interface{}{
		"catalog.database_url": config.Catalog.DatabaseURL,
	})
}
