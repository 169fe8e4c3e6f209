// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/coverage/catalogdb"
	"github.com/Geomatys/geotoolkit-sub012/pkg/process"
)

var (
	rootCmd = &cobra.Command{
		Use:   "coveragedb",
		Short: "Raster coverage catalog",
	}

	config struct {
		Catalog catalogdb.Config
	}
)

func main() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(listCmd)

	process.Bind(setupCmd, &config)
	process.Bind(setupCmd, &setupCfg)
	process.Bind(addCmd, &config)
	process.Bind(addCmd, &addCfg)
	process.Bind(removeCmd, &config)
	process.Bind(listCmd, &config)

	process.Exec(rootCmd)
}

// openCatalog opens the configured catalog.
func openCatalog(ctx context.Context) (coverage.DB, error) {
	return catalogdb.Open(ctx, zap.L().Named("catalog"), config.Catalog)
}
