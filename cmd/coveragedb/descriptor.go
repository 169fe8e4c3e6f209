// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package main

import (
	"time"

	"github.com/zeebo/errs"
	yaml "gopkg.in/yaml.v2"

	"github.com/Geomatys/geotoolkit-sub012/coverage"
)

// descriptor lists the rasters to add in one call.
//
//	geometry:
//	  width: 360
//	  height: 180
//	  scale_x: 1
//	  scale_y: -1
//	  translate_x: -180
//	  translate_y: 90
//	  crs: EPSG:4326
//	rasters:
//	  - path: sst/2020-01.tiff
//	    start: 2020-01-01T00:00:00Z
//	    end: 2020-02-01T00:00:00Z
//	    format:
//	      driver: GeoTIFF
//	      bands:
//	        - {name: sst, lower: 1, upper: 255, scale: 0.15, offset: -3, transfer: linear, units: degC}
type descriptor struct {
	Geometry *geometryDescriptor `yaml:"geometry"`
	Rasters  []rasterDescriptor  `yaml:"rasters"`
}

type geometryDescriptor struct {
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	ScaleX     float64  `yaml:"scale_x"`
	ShearY     float64  `yaml:"shear_y"`
	ShearX     float64  `yaml:"shear_x"`
	ScaleY     float64  `yaml:"scale_y"`
	TranslateX float64  `yaml:"translate_x"`
	TranslateY float64  `yaml:"translate_y"`
	CRS        string   `yaml:"crs"`
	Axes       []string `yaml:"axes"`
}

type bandDescriptor struct {
	Name     string  `yaml:"name"`
	Lower    int64   `yaml:"lower"`
	Upper    int64   `yaml:"upper"`
	Scale    float64 `yaml:"scale"`
	Offset   float64 `yaml:"offset"`
	Transfer string  `yaml:"transfer"`
	Units    string  `yaml:"units"`
}

type formatDescriptor struct {
	Name   string           `yaml:"name"`
	Driver string           `yaml:"driver"`
	Bands  []bandDescriptor `yaml:"bands"`
}

type axisDescriptor struct {
	Name      string    `yaml:"name"`
	Datum     string    `yaml:"datum"`
	Direction string    `yaml:"direction"`
	Units     string    `yaml:"units"`
	Bounds    []float64 `yaml:"bounds"`
}

type rasterDescriptor struct {
	Path     string              `yaml:"path"`
	Index    int                 `yaml:"index"`
	Start    string              `yaml:"start"`
	End      string              `yaml:"end"`
	Format   formatDescriptor    `yaml:"format"`
	Geometry *geometryDescriptor `yaml:"geometry"`
	Axes     []axisDescriptor    `yaml:"axes"`
}

// parseDescriptor decodes a descriptor file into the arguments of AddRasters.
func parseDescriptor(data []byte) (hint *coverage.GridGeometry, rasters []coverage.NewRaster, err error) {
	var desc descriptor
	if err := yaml.UnmarshalStrict(data, &desc); err != nil {
		return nil, nil, errs.Wrap(err)
	}
	if len(desc.Rasters) == 0 {
		return nil, nil, errs.New("descriptor lists no rasters")
	}

	hint = desc.Geometry.grid()
	for i, r := range desc.Rasters {
		raster := coverage.NewRaster{
			Path:     r.Path,
			Index:    r.Index,
			Geometry: r.Geometry.grid(),
			Format: coverage.Format{
				Name:   r.Format.Name,
				Driver: r.Format.Driver,
			},
		}
		if raster.Path == "" {
			return nil, nil, errs.New("raster %d has no path", i)
		}
		if raster.Format.Driver == "" {
			return nil, nil, errs.New("raster %q has no format driver", r.Path)
		}
		if raster.Geometry == nil && hint == nil {
			return nil, nil, errs.New("raster %q has no geometry", r.Path)
		}
		for _, b := range r.Format.Bands {
			transfer := b.Transfer
			if transfer == "" {
				transfer = coverage.Linear
			}
			raster.Format.Bands = append(raster.Format.Bands, coverage.Band{
				Name:     b.Name,
				Lower:    b.Lower,
				Upper:    b.Upper,
				Scale:    b.Scale,
				Offset:   b.Offset,
				Transfer: transfer,
				Units:    b.Units,
			})
		}
		for _, a := range r.Axes {
			raster.Axes = append(raster.Axes, coverage.Axis{
				Name:      a.Name,
				Datum:     a.Datum,
				Direction: coverage.Direction(a.Direction),
				Units:     a.Units,
				Bounds:    a.Bounds,
			})
		}
		if raster.StartTime, err = parseTime(r.Start); err != nil {
			return nil, nil, errs.New("raster %q start: %v", r.Path, err)
		}
		if raster.EndTime, err = parseTime(r.End); err != nil {
			return nil, nil, errs.New("raster %q end: %v", r.Path, err)
		}
		rasters = append(rasters, raster)
	}
	return hint, rasters, nil
}

func (g *geometryDescriptor) grid() *coverage.GridGeometry {
	if g == nil {
		return nil
	}
	return &coverage.GridGeometry{
		Width:      g.Width,
		Height:     g.Height,
		ScaleX:     g.ScaleX,
		ShearY:     g.ShearY,
		ShearX:     g.ShearX,
		ScaleY:     g.ScaleY,
		TranslateX: g.TranslateX,
		TranslateY: g.TranslateY,
		CRS:        g.CRS,
		Axes:       g.Axes,
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
