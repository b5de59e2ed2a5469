// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package verification turns a proof-of-visit submission into a verdict.

The Validator runs three passes over a submission:

 1. Structural checks on the submission identity and the proof payload for
    its proof type (photo, receipt, question, gps_checkin).
 2. A location check against the challenge's verification radius. Being
    too far away is a policy failure (LOCATION_TOO_FAR), not fraud.
 3. The fraud detector from package detection. Each detector signal is
    translated to a stable ErrorCode; high-risk signals block, medium-risk
    signals are returned as warnings.

The verdict is reject when any error is present, review when only warnings
are present and approve otherwise. A detector failure never approves: it is
converted into a single VALIDATION_SYSTEM_ERROR and the submission is
rejected.

# Configuration

Policy lives in an immutable, versioned snapshot published through an
atomic pointer. UpdateConfig validates a ConfigPatch, builds a new detector
for the merged Config and swaps the snapshot in one store, so a concurrent
Validate call sees either the old policy or the new one, never a mix.

# Reporting

When a Reporter is configured (normally *monitor.Service) the Validator
logs fraud findings, logs blocking errors and flags approved submissions
that carried warnings for human review. Reporting never changes a verdict.
*/
package verification
