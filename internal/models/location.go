// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package models

import "time"

// GPSCoordinate is a position reported by a user's device.
//
// Accuracy is the device-reported horizontal accuracy radius in meters.
// Both Accuracy and Timestamp are optional; heuristics that need them
// degrade to "cannot verify" when they are missing.
type GPSCoordinate struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	Accuracy  *float64   `json:"accuracy,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// HasAccuracy reports whether the device reported an accuracy radius.
func (c GPSCoordinate) HasAccuracy() bool {
	return c.Accuracy != nil
}

// AccuracyMeters returns the reported accuracy and whether it was present.
func (c GPSCoordinate) AccuracyMeters() (float64, bool) {
	if c.Accuracy == nil {
		return 0, false
	}
	return *c.Accuracy, true
}

// Float64Ptr is a small helper for building optional accuracy values.
func Float64Ptr(v float64) *float64 {
	return &v
}

// TimePtr is a small helper for building optional timestamps.
func TimePtr(t time.Time) *time.Time {
	return &t
}
