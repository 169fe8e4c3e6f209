// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

package coverage

import "math"

// Envelope is a two dimensional bounding box.
type Envelope struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// EmptyEnvelope returns an envelope containing nothing, ready for Add.
func EmptyEnvelope() Envelope {
	return Envelope{
		MinX: math.Inf(1), MinY: math.Inf(1),
		MaxX: math.Inf(-1), MaxY: math.Inf(-1),
	}
}

// IsEmpty reports whether the envelope contains no point.
func (env Envelope) IsEmpty() bool {
	return !(env.MinX <= env.MaxX && env.MinY <= env.MaxY)
}

// Add returns the envelope extended to contain (x, y).
func (env Envelope) Add(x, y float64) Envelope {
	env.MinX = math.Min(env.MinX, x)
	env.MinY = math.Min(env.MinY, y)
	env.MaxX = math.Max(env.MaxX, x)
	env.MaxY = math.Max(env.MaxY, y)
	return env
}

// Intersects reports whether both envelopes share at least one point.
func (env Envelope) Intersects(other Envelope) bool {
	if env.IsEmpty() || other.IsEmpty() {
		return false
	}
	return env.MinX <= other.MaxX && other.MinX <= env.MaxX &&
		env.MinY <= other.MaxY && other.MinY <= env.MaxY
}
