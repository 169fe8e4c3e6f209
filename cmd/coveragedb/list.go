// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"github.com/Geomatys/geotoolkit-sub012/pkg/process"
)

var listCmd = &cobra.Command{
	Use:   "list [product]",
	Short: "List products, or the rasters of a product",
	Args:  cobra.MaximumNArgs(1),
	RunE:  cmdList,
}

func cmdList(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer func() { err = errs.Combine(err, w.Flush()) }()

	if len(args) == 0 {
		products, err := db.ListProducts(ctx)
		if err != nil {
			return err
		}
		for _, product := range products {
			fmt.Fprintln(w, product.Name)
		}
		return nil
	}

	entries, err := db.ListRasters(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "PATH\tIMAGE\tSTART\tEND\tFORMAT\tGRID\tCRS")
	for _, entry := range entries {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			entry.Path, entry.Index,
			formatTime(entry.StartTime), formatTime(entry.EndTime),
			entry.Format.Name, entry.Grid, entry.Geometry.CRS)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.RFC3339)
}
