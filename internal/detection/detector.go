// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package detection

import (
	"context"
	"fmt"
	"math"
	"time"
)

const (
	baseConfidence       = 0.5
	signalConfidence     = 0.1
	historyConfidence    = 0.02
	maxHistoryConfidence = 0.2
	accuracyConfidence   = 0.05
	minConfidence        = 0.1
	maxConfidence        = 0.95
)

// Detector runs every Rule over a submission and aggregates the signals.
// It is safe for concurrent use; it holds no mutable state.
type Detector struct {
	cfg   Config
	rules []Rule
}

// DefaultRules returns the built-in rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		SpoofingRule{},
		ClockSkewRule{},
		AccuracyRule{},
		ImpossibleTravelRule{},
		CadenceRule{},
		DuplicateRule{},
		PatternRule{},
	}
}

// NewDetector creates a detector with the built-in rules plus any extra ones.
// The caller is expected to have validated cfg.
func NewDetector(cfg Config, extra ...Rule) *Detector {
	rules := DefaultRules()
	rules = append(rules, extra...)
	return &Detector{cfg: cfg, rules: rules}
}

// Config returns the detector's configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Assess implements the validator's detector contract. The built-in detector
// does no I/O, so the only error is a cancelled context.
func (d *Detector) Assess(ctx context.Context, in *Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.Score(in), nil
}

// Score assesses one submission. It never panics on malformed input.
func (d *Detector) Score(in *Input) *Result {
	if in == nil {
		in = &Input{}
	}
	if signals := checkInput(in); len(signals) > 0 {
		return rejectInvalid(signals)
	}

	a := d.prepare(in)
	var signals []Signal
	for _, rule := range d.rules {
		signals = append(signals, rule.Check(a)...)
	}
	return d.aggregate(a, signals)
}

func (d *Detector) prepare(in *Input) *Assessment {
	a := &Assessment{
		Submission:        in.Submission,
		ChallengeLocation: in.ChallengeLocation,
		Prior:             in.History.Prior(in.Submission.ID),
		HistoryTotal:      in.History.Total(),
		At:                in.Now,
		Config:            &d.cfg,
	}
	if in.History != nil {
		a.SuspiciousTotal = in.History.SuspiciousSubmissions
	}
	if a.At.IsZero() {
		a.At = in.Submission.SubmittedAt
	}
	if a.At.IsZero() {
		a.At = time.Now()
	}
	return a
}

func rejectInvalid(signals []Signal) *Result {
	return &Result{
		IsValid:           false,
		FraudRisk:         RiskHigh,
		Confidence:        maxConfidence,
		Reasons:           reasonsOf(signals),
		Signals:           signals,
		RecommendedAction: ActionReject,
	}
}

// aggregate folds signals into a Result. Any high signal rejects; any
// medium signal requests review; a clean result is only low risk for an
// established user with verified accuracy and verifiable travel.
func (d *Detector) aggregate(a *Assessment, signals []Signal) *Result {
	risk := RiskLow
	corroborating := 0
	travelVerifiable := true
	for i := range signals {
		if signals[i].Risk.Rank() > risk.Rank() {
			risk = signals[i].Risk
		}
		if signals[i].Risk.Rank() >= RiskMedium.Rank() {
			corroborating++
		}
		if signals[i].Code == SignalTravelUnverifiable {
			travelVerifiable = false
		}
	}

	acc, hasAcc := a.Submission.Location.AccuracyMeters()
	accuracyVerified := hasAcc && acc <= d.cfg.GoodAccuracyMeters
	priorCount := len(a.Prior)
	if a.HistoryTotal > priorCount {
		priorCount = a.HistoryTotal
	}

	if risk == RiskLow {
		if missing := missingEvidence(priorCount, d.cfg.EstablishedHistoryMin, hasAcc, accuracyVerified, travelVerifiable); missing != "" {
			signals = append(signals, Signal{
				Code:    SignalLimitedEvidence,
				Risk:    RiskLow,
				Message: "Insufficient evidence for low risk: " + missing,
				Metrics: map[string]float64{"prior_submissions": float64(priorCount)},
			})
			risk = RiskMedium
		}
	}

	confidence := baseConfidence +
		signalConfidence*float64(corroborating) +
		math.Min(historyConfidence*float64(priorCount), maxHistoryConfidence)
	if accuracyVerified {
		confidence += accuracyConfidence
	}
	confidence = math.Max(minConfidence, math.Min(maxConfidence, confidence))

	result := &Result{
		IsValid:    risk != RiskHigh,
		FraudRisk:  risk,
		Confidence: roundTo2Decimals(confidence),
		Reasons:    reasonsOf(signals),
		Signals:    signals,
	}
	switch risk {
	case RiskHigh:
		result.RecommendedAction = ActionReject
	case RiskMedium:
		result.RecommendedAction = ActionReview
	default:
		result.RecommendedAction = ActionApprove
	}
	return result
}

func missingEvidence(priorCount, establishedMin int, hasAcc, accuracyVerified, travelVerifiable bool) string {
	switch {
	case priorCount < establishedMin:
		return fmt.Sprintf("limited submission history (%d of %d)", priorCount, establishedMin)
	case !hasAcc:
		return "GPS accuracy not reported"
	case !accuracyVerified:
		return "GPS accuracy not precise enough"
	case !travelVerifiable:
		return "travel from previous submission could not be verified"
	}
	return ""
}

func reasonsOf(signals []Signal) []string {
	reasons := make([]string, 0, len(signals))
	for i := range signals {
		reasons = append(reasons, signals[i].Message)
	}
	return reasons
}
