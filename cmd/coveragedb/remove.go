// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
	"github.com/Geomatys/geotoolkit-sub012/pkg/process"
)

var (
	removeCmd = &cobra.Command{
		Use:   "remove <path>...",
		Short: "Remove rasters by path, or by area with --product",
		RunE:  cmdRemove,
	}

	removeCfg struct {
		Product string
		CRS     string
		Bbox    []float64
		Start   string
		End     string
	}
)

func init() {
	flags := removeCmd.Flags()
	flags.StringVar(&removeCfg.Product, "product", "", "remove the rasters of this product within the area given by the other flags")
	flags.StringVar(&removeCfg.CRS, "crs", "", "reference system of the envelope, empty selects by time only")
	flags.Float64SliceVar(&removeCfg.Bbox, "bbox", nil, "envelope as min-x,min-y,max-x,max-y")
	flags.StringVar(&removeCfg.Start, "start", "", "start of the time range, RFC 3339")
	flags.StringVar(&removeCfg.End, "end", "", "end of the time range, RFC 3339")
}

func cmdRemove(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := process.Ctx(cmd)
	defer cancel()

	if removeCfg.Product == "" && len(args) == 0 {
		return errs.New("expected paths or --product")
	}
	if removeCfg.Product != "" && len(args) > 0 {
		return errs.New("paths and --product are exclusive")
	}

	var area coverage.Area
	if removeCfg.Product != "" {
		area, err = parseArea(removeCfg.CRS, removeCfg.Bbox, removeCfg.Start, removeCfg.End)
		if err != nil {
			return err
		}
	}

	db, err := openCatalog(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errs.Combine(err, db.Close()) }()

	var removed int64
	if removeCfg.Product != "" {
		removed, err = db.RemoveRastersIn(ctx, removeCfg.Product, area)
	} else {
		removed, err = db.RemoveRasters(ctx, args...)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d rasters\n", removed)
	return err
}

// parseArea builds the area selected by the remove flags.
func parseArea(crs string, bbox []float64, start, end string) (area coverage.Area, err error) {
	area.CRS = crs
	if crs != "" {
		if len(bbox) != 4 {
			return area, errs.New("--bbox needs 4 values with --crs, got %d", len(bbox))
		}
		area.Envelope = coverage.Envelope{MinX: bbox[0], MinY: bbox[1], MaxX: bbox[2], MaxY: bbox[3]}
		if area.Envelope.IsEmpty() {
			return area, errs.New("empty --bbox %v", bbox)
		}
	}
	if start != "" {
		if area.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			return area, errs.Wrap(err)
		}
	}
	if end != "" {
		if area.EndTime, err = time.Parse(time.RFC3339, end); err != nil {
			return area, errs.Wrap(err)
		}
	}
	return area, nil
}
