// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

// DuplicateRule flags a second submission for a challenge the user already
// submitted, whatever the earlier attempt's status. Each user gets one
// attempt per challenge.
type DuplicateRule struct{}

// Type returns the rule type.
func (DuplicateRule) Type() RuleType { return RuleTypeDuplicate }

// Check scans the user's history for the same challenge.
func (DuplicateRule) Check(a *Assessment) []Signal {
	if !a.Config.DuplicateCheckEnabled {
		return nil
	}
	for i := range a.Prior {
		prev := &a.Prior[i]
		if prev.ChallengeID != a.Submission.ChallengeID {
			continue
		}
		return []Signal{{
			Code:    SignalDuplicateChallenge,
			Rule:    RuleTypeDuplicate,
			Risk:    RiskHigh,
			Message: "Challenge was already submitted by this user",
		}}
	}
	return nil
}
