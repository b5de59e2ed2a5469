// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package models defines the data structures shared across Checkpoint.

Key Components:

  - GPSCoordinate: a device-reported position with optional accuracy and timestamp
  - Submission: one user's claim of having completed a challenge
  - UserSubmissionHistory: the prior submissions the detector reasons over
  - Challenge: the business location, radius and proof requirements a submission targets
  - ProofSubmission: the type-specific evidence attached to a submission
  - APIResponse: the JSON envelope used by the ops HTTP surface

Submissions and histories are owned by the caller and supplied fresh on every
validation; nothing in this package caches them.
*/
package models
