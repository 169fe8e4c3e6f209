// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package coverage describes the entries of a raster catalog: grid
// geometries, sample formats, additional axes, series of raster files and
// the products they belong to. Pixel data stays in the raster files.
package coverage

import (
	"encoding/hex"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Direction of an additional axis.
type Direction string

// Axis directions.
const (
	Up     Direction = "UP"
	Down   Direction = "DOWN"
	Future Direction = "FUTURE"
	Past   Direction = "PAST"
	Other  Direction = "OTHER"
)

// Axis is an additional (vertical, temporal or other) dimension of a grid.
// Bounds are the cell boundaries along the axis, so an axis with n cells has
// n+1 bounds.
type Axis struct {
	Name      string
	Datum     string
	Direction Direction
	Units     string
	Bounds    []float64
}

// SameContent reports whether both axes describe the same dimension,
// ignoring their names.
func (axis Axis) SameContent(other Axis) bool {
	return axis.Datum == other.Datum &&
		axis.Direction == other.Direction &&
		axis.Units == other.Units &&
		EncodeBounds(axis.Bounds) == EncodeBounds(other.Bounds)
}

// Cells returns the number of cells along the axis.
func (axis Axis) Cells() int {
	if len(axis.Bounds) < 2 {
		return 0
	}
	return len(axis.Bounds) - 1
}

// EncodeBounds returns the canonical text form of axis bounds. Two bounds
// arrays are equal when their encodings are equal.
func EncodeBounds(bounds []float64) string {
	var b strings.Builder
	for i, v := range bounds {
		if i > 0 {
			b.WriteByte(',')
		}
		if v == 0 {
			// -0 and 0 are the same bound.
			v = 0
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// DecodeBounds parses the output of EncodeBounds.
func DecodeBounds(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	bounds := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, err
		}
		bounds = append(bounds, v)
	}
	return bounds, nil
}

// Transfer functions converting sample values to geophysical values.
const (
	Linear      = "linear"
	Logarithmic = "log"
	Exponential = "exp"
)

// Band describes one sample dimension of a format: the range of packed
// integer samples and the transfer function to geophysical values.
type Band struct {
	Name     string
	Lower    int64
	Upper    int64
	Scale    float64
	Offset   float64
	Transfer string
	Units    string
}

// Geophysics converts a packed sample to its geophysical value.
// It returns NaN for samples outside of [Lower, Upper].
func (band Band) Geophysics(sample int64) float64 {
	if sample < band.Lower || sample > band.Upper {
		return math.NaN()
	}
	v := float64(sample)*band.Scale + band.Offset
	switch band.Transfer {
	case Logarithmic:
		return math.Log10(v)
	case Exponential:
		return math.Pow(10, v)
	default:
		return v
	}
}

// Format is the sample format of raster files: the driver reading them and
// their bands.
type Format struct {
	Name   string
	Driver string
	Bands  []Band
}

// SameContent reports whether both formats decode files the same way,
// ignoring their names.
func (format Format) SameContent(other Format) bool {
	if format.Driver != other.Driver || len(format.Bands) != len(other.Bands) {
		return false
	}
	for i := range format.Bands {
		if format.Bands[i] != other.Bands[i] {
			return false
		}
	}
	return true
}

// ContentKey returns a digest of the driver and the bands. Two formats have
// the same key exactly when SameContent holds between them.
func (format Format) ContentKey() string {
	var b strings.Builder
	field := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	field(format.Driver)
	for _, band := range format.Bands {
		field(band.Name)
		field(strconv.FormatInt(band.Lower, 10))
		field(strconv.FormatInt(band.Upper, 10))
		field(EncodeBounds([]float64{band.Scale, band.Offset}))
		field(band.Transfer)
		field(band.Units)
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Equal reports whether both formats are identical.
func (format Format) Equal(other Format) bool {
	return format.Name == other.Name && format.SameContent(other)
}

// GridGeometry maps pixel coordinates to coordinates of a reference system
// through an affine transform, possibly extended by additional axes.
type GridGeometry struct {
	ID         int64
	Width      int
	Height     int
	ScaleX     float64
	ShearY     float64
	ShearX     float64
	ScaleY     float64
	TranslateX float64
	TranslateY float64
	CRS        string
	Axes       []string
}

// SameContent reports whether both grid geometries are the same, ignoring
// their identifiers.
func (grid GridGeometry) SameContent(other GridGeometry) bool {
	if len(grid.Axes) != len(other.Axes) {
		return false
	}
	for i := range grid.Axes {
		if grid.Axes[i] != other.Axes[i] {
			return false
		}
	}
	return grid.Width == other.Width &&
		grid.Height == other.Height &&
		grid.ScaleX == other.ScaleX &&
		grid.ShearY == other.ShearY &&
		grid.ShearX == other.ShearX &&
		grid.ScaleY == other.ScaleY &&
		grid.TranslateX == other.TranslateX &&
		grid.TranslateY == other.TranslateY &&
		grid.CRS == other.CRS
}

// Equal reports whether both grid geometries are identical.
func (grid GridGeometry) Equal(other GridGeometry) bool {
	return grid.ID == other.ID && grid.SameContent(other)
}

// Envelope returns the bounding box of the pixel corners in the reference system.
func (grid GridGeometry) Envelope() Envelope {
	envelope := EmptyEnvelope()
	for _, corner := range [4][2]float64{
		{0, 0},
		{float64(grid.Width), 0},
		{0, float64(grid.Height)},
		{float64(grid.Width), float64(grid.Height)},
	} {
		x := grid.ScaleX*corner[0] + grid.ShearX*corner[1] + grid.TranslateX
		y := grid.ShearY*corner[0] + grid.ScaleY*corner[1] + grid.TranslateY
		envelope = envelope.Add(x, y)
	}
	return envelope
}

// Product is a named group of series.
type Product struct {
	Name string
}

// Series is a set of raster files of one product sharing a directory, a file
// extension and a format.
type Series struct {
	ID        int64
	Product   string
	Directory string
	Extension string
	Format    string
}

// SameContent reports whether both series are the same, ignoring their identifiers.
func (series Series) SameContent(other Series) bool {
	return series.Product == other.Product &&
		series.Directory == other.Directory &&
		series.Extension == other.Extension &&
		series.Format == other.Format
}

// Raster is one image of a raster file in a series.
type Raster struct {
	Series    int64
	Filename  string
	Index     int
	StartTime time.Time
	EndTime   time.Time
	Grid      int64
}

// RasterEntry is a raster resolved against its series, format and grid geometry.
type RasterEntry struct {
	Raster
	Product  string
	Path     string
	Format   Format
	Geometry GridGeometry
}

// Overlaps reports whether the raster time range intersects [start, end].
// Zero times are unbounded.
func (raster Raster) Overlaps(start, end time.Time) bool {
	if !end.IsZero() && !raster.StartTime.IsZero() && raster.StartTime.After(end) {
		return false
	}
	if !start.IsZero() && !raster.EndTime.IsZero() && raster.EndTime.Before(start) {
		return false
	}
	return true
}

// NewRaster describes a raster file to add to the catalog.
type NewRaster struct {
	// Path is the raster file, absolute or relative to the catalog root.
	Path string
	// Index is the image index inside the file.
	Index     int
	Format    Format
	Geometry  *GridGeometry
	Axes      []Axis
	StartTime time.Time
	EndTime   time.Time
}

// Area selects rasters by envelope and time range. Zero times are unbounded.
type Area struct {
	CRS       string
	Envelope  Envelope
	StartTime time.Time
	EndTime   time.Time
}

// AddPolicy controls what happens to the product of added rasters.
type AddPolicy int

const (
	// CreateProduct creates the product and fails if it already exists.
	CreateProduct AddPolicy = iota
	// CreateOrReuseProduct creates the product unless it already exists.
	CreateOrReuseProduct
	// ExistingProduct fails if the product does not exist.
	ExistingProduct
)

// String implements fmt.Stringer.
func (policy AddPolicy) String() string {
	switch policy {
	case CreateProduct:
		return "create"
	case CreateOrReuseProduct:
		return "reuse"
	case ExistingProduct:
		return "existing"
	default:
		return "unknown"
	}
}

// ParseAddPolicy parses the output of AddPolicy.String.
func ParseAddPolicy(s string) (AddPolicy, error) {
	switch s {
	case "create":
		return CreateProduct, nil
	case "reuse":
		return CreateOrReuseProduct, nil
	case "existing":
		return ExistingProduct, nil
	default:
		return 0, Error.New("unknown add policy %q", s)
	}
}
