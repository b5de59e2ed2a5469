// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package logging

import (
	"math"
	"strings"
)

// SanitizeUserID masks a user ID for log output.
// Example: "t2_abcdef1234" -> "t2_a...1234"
func SanitizeUserID(userID string) string {
	if userID == "" {
		return ""
	}
	if len(userID) <= 8 {
		return "***"
	}
	return userID[:4] + "..." + userID[len(userID)-4:]
}

// CoarseCoordinate rounds a latitude or longitude to 3 decimal places
// (roughly 100 m) so precise user positions never reach the logs.
// Non-finite values are returned unchanged so they remain visible as bad input.
func CoarseCoordinate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*1000) / 1000
}

// SanitizeText collapses control characters and truncates free text
// (reasons, review notes) before it is logged.
func SanitizeText(s string, maxLen int) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	return truncateString(s, maxLen)
}

func truncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
