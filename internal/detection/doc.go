// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

// Package detection scores a single location-based submission for fraud.
//
// Detection Architecture:
//
//	Submission + History + Challenge location
//	        |
//	        v
//	  input checks ---- invalid ----> high risk, reject (no distance math)
//	        |
//	        v
//	  Rules (one file each) ---> []Signal ---> aggregate ---> Result
//
// Supported Rules:
//   - Spoofing: exact target match and known emulator/simulator coordinates
//   - Accuracy: implausibly precise or uselessly imprecise GPS fixes
//   - Impossible Travel: movement faster than MaxTravelSpeedMps since the last submission
//   - Cadence: daily limits, minimum spacing and machine-regular intervals
//   - Duplicate: a second submission for the same challenge
//   - Patterns: proof-type homogeneity, bursts of completions, suspicious history
//
// The Detector is a pure function of its inputs and an immutable Config.
// It performs no I/O, takes no locks and never panics on malformed input;
// malformed GPS data is itself reported as a high-confidence fraud signal.
// Every Signal carries a stable SignalCode so callers never branch on the
// human-readable message.
package detection
