// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the fixed mean Earth radius used for all distances.
const EarthRadiusMeters = 6371000.0

// CoordinateEpsilon is the tolerance for treating a coordinate as (0, 0).
// 1e-7 degrees is about 1.1 cm at the equator.
const CoordinateEpsilon = 1e-7

var (
	ErrNonFiniteCoordinate = errors.New("coordinate is not a finite number")
	ErrLatitudeOutOfRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeOutOfRange = errors.New("longitude must be between -180 and 180")
	ErrInvalidAccuracy     = errors.New("accuracy must be a finite non-negative number")
)

// ValidateCoordinate reports why a latitude/longitude pair is unusable, or nil.
func ValidateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return ErrNonFiniteCoordinate
	}
	if lat < -90 || lat > 90 {
		return ErrLatitudeOutOfRange
	}
	if lon < -180 || lon > 180 {
		return ErrLongitudeOutOfRange
	}
	return nil
}

// ValidateAccuracy reports whether an optional accuracy value is usable.
func ValidateAccuracy(acc *float64) error {
	if acc == nil {
		return nil
	}
	if math.IsNaN(*acc) || math.IsInf(*acc, 0) || *acc < 0 {
		return ErrInvalidAccuracy
	}
	return nil
}

// IsUnknownLocation returns true for the (0, 0) sentinel within CoordinateEpsilon.
func IsUnknownLocation(lat, lon float64) bool {
	return math.Abs(lat) < CoordinateEpsilon && math.Abs(lon) < CoordinateEpsilon
}

// HaversineMeters returns the great-circle distance between two points in meters.
// Inputs must already have passed ValidateCoordinate.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a marginally past 1 for antipodal points.
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

// roundTo2Decimals rounds a float64 to 2 decimal places.
func roundTo2Decimals(f float64) float64 {
	return math.Round(f*100) / 100
}
