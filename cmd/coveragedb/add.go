// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/pkg/process"
)

var (
	addCmd = &cobra.Command{
		Use:   "add <product> <descriptor.yaml>",
		Short: "Add the rasters listed in a descriptor file to a product",
		Args:  cobra.ExactArgs(2),
		RunE:  cmdAdd,
	}

	addCfg struct {
		Policy string `help:"what to do with the product: create, reuse or existing" default:"reuse"`
	}
)

func cmdAdd(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	product := args[0]
	policy, err := coverage.ParseAddPolicy(addCfg.Policy)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	hint, rasters, err := parseDescriptor(data)
	if err != nil {
		return err
	}

	db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	if err := db.AddRasters(ctx, product, hint, policy, rasters...); err != nil {
		return err
	}

	zap.L().Info("Added rasters", zap.String("product", product), zap.Int("count", len(rasters)))
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "added %d rasters to %s\n", len(rasters), product)
	return err
}
