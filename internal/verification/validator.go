// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/logging"
	"github.com/tomtom215/checkpoint/internal/metrics"
	"github.com/tomtom215/checkpoint/internal/models"
	"github.com/tomtom215/checkpoint/internal/monitor"
	"github.com/tomtom215/checkpoint/internal/validation"
)

const tracerName = "github.com/tomtom215/checkpoint/internal/verification"

// FraudDetector scores a submission. *detection.Detector implements it;
// remote or model-backed detectors may fail, which rejects the submission.
type FraudDetector interface {
	Assess(ctx context.Context, in *detection.Input) (*detection.Result, error)
}

// DetectorFactory builds a detector for a policy snapshot.
type DetectorFactory func(cfg detection.Config) FraudDetector

// Reporter receives validation outcomes. *monitor.Service implements it.
type Reporter interface {
	LogFraudDetection(ctx context.Context, sub *models.Submission, res *detection.Result) []string
	LogValidationFailure(ctx context.Context, sub *models.Submission, issues []models.ValidationIssue) []string
	FlagSubmissionForReview(ctx context.Context, in monitor.FlagInput) (*monitor.FlaggedSubmission, error)
}

// Option configures a Validator.
type Option func(*Validator)

// WithReporter sends validation outcomes to r.
func WithReporter(r Reporter) Option {
	return func(v *Validator) {
		v.reporter = r
	}
}

// WithDetectorFactory replaces the built-in detector.
func WithDetectorFactory(f DetectorFactory) Option {
	return func(v *Validator) {
		if f != nil {
			v.newDetector = f
		}
	}
}

// WithClock sets the time source used for ValidatedAt and challenge windows.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithTracer sets the tracer used for validation spans.
func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) {
		if t != nil {
			v.tracer = t
		}
	}
}

// policy is what a Validate call reads: a snapshot plus the detector built
// for it. It is never mutated once published.
type policy struct {
	snap     Snapshot
	detector FraudDetector
}

// Validator validates submissions. It is safe for concurrent use.
type Validator struct {
	current     atomic.Pointer[policy]
	updateMu    sync.Mutex
	newDetector DetectorFactory
	reporter    Reporter
	tracer      trace.Tracer
	now         func() time.Time
}

// NewValidator creates a Validator with cfg as policy version 1.
func NewValidator(cfg Config, opts ...Option) (*Validator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid validator config: %w", err)
	}
	v := &Validator{
		newDetector: func(c detection.Config) FraudDetector { return detection.NewDetector(c) },
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	v.publish(Snapshot{Version: 1, Config: cfg, UpdatedAt: v.now().UTC()})
	return v, nil
}

func (v *Validator) publish(snap Snapshot) {
	p := &policy{snap: snap, detector: v.newDetector(snap.Config.DetectorConfig())}
	v.current.Store(p)
	metrics.SetValidatorConfigVersion(snap.Version)
}

// Config returns the current policy snapshot.
func (v *Validator) Config() Snapshot {
	return v.current.Load().snap
}

// UpdateConfig applies patch to the current policy and publishes the result
// as a new version. An invalid result leaves the current policy in place.
func (v *Validator) UpdateConfig(patch ConfigPatch) (Snapshot, error) {
	v.updateMu.Lock()
	defer v.updateMu.Unlock()

	cur := v.current.Load().snap
	if patch.IsEmpty() {
		return cur, nil
	}
	next := patch.Apply(cur.Config)
	if err := next.Validate(); err != nil {
		return cur, fmt.Errorf("invalid validator config: %w", err)
	}
	snap := Snapshot{Version: cur.Version + 1, Config: next, UpdatedAt: v.now().UTC()}
	v.publish(snap)

	logging.Info().
		Uint64("version", snap.Version).
		Bool("fraud_detection", next.FraudDetectionEnabled).
		Bool("rate_limiting", next.RateLimitingEnabled).
		Msg("Validator configuration updated")
	return snap, nil
}

// Validate checks a submission against challenge using the user's history
// and the proof payload. It always returns a well-formed Result.
func (v *Validator) Validate(ctx context.Context, sub *models.Submission, challenge *models.Challenge,
	history *models.UserSubmissionHistory, proof *models.ProofSubmission) *Result {
	start := time.Now()
	p := v.current.Load()
	cfg := &p.snap.Config

	ctx, span := v.tracer.Start(ctx, "verification.Validate",
		trace.WithAttributes(attribute.Int64("validator.config_version", int64(p.snap.Version))))
	defer span.End()

	res := &Result{
		FraudRisk:     detection.RiskLow,
		ConfigVersion: p.snap.Version,
		ValidatedAt:   v.now().UTC(),
	}

	if v.checkInputs(res, sub, challenge) {
		v.checkChallenge(res, cfg, sub, challenge, proof)
		if v.checkChallengeLocation(res, challenge) {
			if cfg.LocationValidationEnabled {
				checkLocation(res, cfg, sub, challenge)
			}
			if cfg.FraudDetectionEnabled {
				v.runDetector(ctx, span, res, p.detector, sub, challenge, history)
			}
		}
	}
	res.finalize()

	if sub != nil {
		span.SetAttributes(
			attribute.String("submission.id", sub.ID),
			attribute.String("submission.proof_type", string(sub.ProofType)),
		)
		v.report(ctx, res, sub)
	}
	span.SetAttributes(
		attribute.String("validation.decision", string(res.Decision)),
		attribute.String("validation.fraud_risk", string(res.FraudRisk)),
		attribute.Int("validation.errors", len(res.Errors)),
		attribute.Int("validation.warnings", len(res.Warnings)),
	)
	if !res.IsValid {
		span.SetStatus(codes.Error, "submission rejected")
	}

	for i := range res.Errors {
		metrics.RecordValidationIssue(string(res.Errors[i].Code), true)
	}
	for i := range res.Warnings {
		metrics.RecordValidationIssue(string(res.Warnings[i].Code), false)
	}
	metrics.RecordValidation(string(res.Decision), time.Since(start))

	logging.Ctx(ctx).Debug().
		Str("decision", string(res.Decision)).
		Str("fraud_risk", string(res.FraudRisk)).
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Uint64("config_version", res.ConfigVersion).
		Msg("Submission validated")
	return res
}

// checkInputs handles the failures nothing else can run past: a missing
// submission or challenge, or a submission without its identity fields.
func (v *Validator) checkInputs(res *Result, sub *models.Submission, challenge *models.Challenge) bool {
	if sub == nil {
		res.addError(Issue{
			Code:    models.CodeMissingRequiredField,
			Message: "Submission is required",
			Field:   "submission",
			Source:  models.SourceProof,
		})
		return false
	}
	if challenge == nil {
		res.addError(Issue{
			Code:    models.CodeMissingRequiredField,
			Message: "Challenge is required",
			Field:   "challenge",
			Source:  models.SourceProof,
		})
		return false
	}

	ok := true
	if verr := validation.ValidateStruct(sub); verr != nil {
		for _, fe := range verr.Errors() {
			code := models.CodeMissingRequiredField
			if fe.Field() == "proof_type" && fe.Tag() != "required" {
				code = models.CodeProofTypeNotAllowed
			}
			res.addError(Issue{Code: code, Message: fe.Error(), Field: fe.Field(), Source: models.SourceProof})
		}
		ok = false
	}
	if sub.ChallengeID != "" && challenge.ID != "" && sub.ChallengeID != challenge.ID {
		res.addError(Issue{
			Code:    models.CodeInvalidProofData,
			Message: "Submission does not belong to this challenge",
			Field:   "challenge_id",
			Source:  models.SourceProof,
		})
		ok = false
	}
	return ok
}

// checkChallenge covers the challenge window, the proof type and the proof
// payload.
func (v *Validator) checkChallenge(res *Result, cfg *Config, sub *models.Submission,
	challenge *models.Challenge, proof *models.ProofSubmission) {
	at := sub.SubmittedAt
	if at.IsZero() {
		at = v.now()
	}
	if !challenge.IsActive(at) {
		res.addError(Issue{
			Code:    models.CodeChallengeInactive,
			Message: "Challenge is not active",
			Field:   "challenge_id",
			Source:  models.SourceProof,
		})
	}

	if !challenge.Allows(sub.ProofType) {
		res.addError(Issue{
			Code:    models.CodeProofTypeNotAllowed,
			Message: fmt.Sprintf("Proof type %q is not accepted for this challenge", sub.ProofType),
			Source:  models.SourceProof,
		})
	}
	if proof != nil && proof.Type != "" && proof.Type != sub.ProofType {
		res.addError(Issue{
			Code:    models.CodeProofTypeNotAllowed,
			Message: fmt.Sprintf("Proof of type %q does not match submission type %q", proof.Type, sub.ProofType),
			Source:  models.SourceProof,
		})
		return
	}

	switch sub.ProofType {
	case models.ProofTypePhoto:
		checkPhoto(res, cfg, proof)
	case models.ProofTypeReceipt:
		checkReceipt(res, proof)
	case models.ProofTypeQuestion:
		checkAnswer(res, cfg, challenge, proof)
	case models.ProofTypeGPSCheckin:
		if proof != nil && proof.Checkin != nil {
			addStructIssues(res, proof.Checkin, models.CodeInvalidProofData, "checkin.")
		}
	}
}

func checkPhoto(res *Result, cfg *Config, proof *models.ProofSubmission) {
	if !cfg.PhotoValidationEnabled {
		return
	}
	if proof == nil || proof.Photo == nil || strings.TrimSpace(proof.Photo.ImageURL) == "" {
		res.addError(Issue{
			Code:    models.CodeMissingPhoto,
			Message: "Photo proof requires an image",
			Source:  models.SourceProof,
		})
		return
	}
	addStructIssues(res, proof.Photo, models.CodeInvalidProofData, "photo.")
}

func checkReceipt(res *Result, proof *models.ProofSubmission) {
	if proof == nil || proof.Receipt == nil {
		res.addError(Issue{
			Code:    models.CodeInvalidReceipt,
			Message: "Receipt proof requires a business name and timestamp",
			Source:  models.SourceProof,
		})
		return
	}
	addStructIssues(res, proof.Receipt, models.CodeInvalidReceipt, "receipt.")
}

func checkAnswer(res *Result, cfg *Config, challenge *models.Challenge, proof *models.ProofSubmission) {
	minLen := cfg.MinAnswerLength
	if challenge.MinAnswerLength > 0 {
		minLen = challenge.MinAnswerLength
	}
	answer := ""
	if proof != nil && proof.Question != nil {
		answer = strings.TrimSpace(proof.Question.Answer)
	}
	if answer == "" || utf8.RuneCountInString(answer) < minLen {
		res.addError(Issue{
			Code:    models.CodeAnswerTooShort,
			Message: fmt.Sprintf("Answer must be at least %d characters", minLen),
			Source:  models.SourceProof,
		})
		return
	}
	addStructIssues(res, proof.Question, models.CodeInvalidProofData, "question.")
}

// addStructIssues runs the struct validator over a proof payload and
// reports each failing field under code.
func addStructIssues(res *Result, payload interface{}, code models.ErrorCode, prefix string) {
	verr := validation.ValidateStruct(payload)
	if verr == nil {
		return
	}
	for _, fe := range verr.Errors() {
		res.addError(Issue{
			Code:    code,
			Message: fe.Error(),
			Field:   prefix + fe.Field(),
			Source:  models.SourceProof,
		})
	}
}

// checkChallengeLocation fails closed when the challenge itself has no
// usable coordinate: neither distance nor fraud checks can run.
func (v *Validator) checkChallengeLocation(res *Result, challenge *models.Challenge) bool {
	loc := challenge.Location
	if err := detection.ValidateCoordinate(loc.Latitude, loc.Longitude); err != nil {
		res.addError(Issue{
			Code:    models.CodeValidationSystemError,
			Message: "Challenge location is not configured correctly",
			Field:   "challenge.location",
			Source:  models.SourceSystem,
		})
		logging.Error().Err(err).Str("challenge_id", challenge.ID).Msg("Challenge has an invalid location")
		return false
	}
	return true
}

func checkLocation(res *Result, cfg *Config, sub *models.Submission, challenge *models.Challenge) {
	loc := sub.Location
	if err := detection.ValidateCoordinate(loc.Latitude, loc.Longitude); err != nil {
		res.addError(Issue{
			Code:    models.CodeInvalidGPSCoordinates,
			Message: fmt.Sprintf("Invalid GPS coordinates: %v", err),
			Source:  models.SourceLocation,
		})
		return
	}
	if err := detection.ValidateAccuracy(loc.Accuracy); err != nil {
		res.addError(Issue{
			Code:    models.CodeInvalidGPSCoordinates,
			Message: fmt.Sprintf("Invalid GPS coordinates: %v", err),
			Source:  models.SourceLocation,
		})
		return
	}

	radius := cfg.DefaultVerificationRadius
	if challenge.VerificationRadiusMeters > 0 {
		radius = challenge.VerificationRadiusMeters
	}
	dist := detection.HaversineMeters(loc.Latitude, loc.Longitude,
		challenge.Location.Latitude, challenge.Location.Longitude)
	if dist > radius {
		res.addError(Issue{
			Code:    models.CodeLocationTooFar,
			Message: fmt.Sprintf("You are %.0f m from the challenge location; you must be within %.0f m", dist, radius),
			Source:  models.SourceLocation,
		})
	}
}

// runDetector assesses the submission and folds the detector result into
// res. A failing detector produces a single system error.
func (v *Validator) runDetector(ctx context.Context, span trace.Span, res *Result, det FraudDetector,
	sub *models.Submission, challenge *models.Challenge, history *models.UserSubmissionHistory) {
	at := sub.SubmittedAt
	if at.IsZero() {
		at = v.now()
	}
	fraud, err := assess(ctx, det, &detection.Input{
		Submission:        sub,
		History:           history,
		ChallengeLocation: challenge.Location,
		Now:               at,
	})
	if err != nil {
		metrics.RecordDetectorFailure()
		span.RecordError(err)
		logging.Ctx(ctx).Error().Err(err).
			Str("submission_id", sub.ID).
			Msg("Fraud detection failed; rejecting submission")
		res.FraudRisk = detection.RiskHigh
		res.addError(Issue{
			Code:    models.CodeValidationSystemError,
			Message: "Submission could not be verified. Please try again later",
			Source:  models.SourceSystem,
		})
		return
	}

	res.Fraud = fraud
	res.FraudRisk = fraud.FraudRisk
	res.Confidence = fraud.Confidence
	metrics.RecordFraudAssessment(string(fraud.FraudRisk))

	blocked := false
	for _, sig := range fraud.Signals {
		metrics.RecordFraudSignal(string(sig.Code), string(sig.Risk))
		issue := Issue{
			Code:    CodeForSignal(sig.Code),
			Message: sig.Message,
			Source:  models.SourceFraud,
			Signal:  string(sig.Code),
		}
		switch sig.Risk {
		case detection.RiskHigh:
			res.addError(issue)
			blocked = true
		case detection.RiskMedium:
			res.addWarning(issue)
		}
	}
	if fraud.FraudRisk == detection.RiskHigh && !blocked {
		res.addError(Issue{
			Code:    models.CodeFraudDetected,
			Message: "Submission was flagged as fraudulent",
			Source:  models.SourceFraud,
		})
	}
}

// assess calls the detector, converting a panic or a nil result into an
// error.
func assess(ctx context.Context, det FraudDetector, in *detection.Input) (res *detection.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fmt.Errorf("fraud detector panicked: %v", r)
		}
	}()
	res, err = det.Assess(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("fraud detector: %w", err)
	}
	if res == nil {
		return nil, errors.New("fraud detector returned no result")
	}
	return res, nil
}

// report forwards the outcome to the Reporter. Failures are logged only.
func (v *Validator) report(ctx context.Context, res *Result, sub *models.Submission) {
	if v.reporter == nil {
		return
	}
	if res.Fraud != nil && len(res.Fraud.Signals) > 0 {
		res.EventIDs = append(res.EventIDs, v.reporter.LogFraudDetection(ctx, sub, res.Fraud)...)
	}
	if len(res.Errors) > 0 {
		res.EventIDs = append(res.EventIDs, v.reporter.LogValidationFailure(ctx, sub, res.Errors)...)
		return
	}
	if len(res.Warnings) == 0 {
		return
	}

	flags := make([]string, 0, len(res.Warnings))
	for i := range res.Warnings {
		flags = append(flags, string(res.Warnings[i].Code))
	}
	_, err := v.reporter.FlagSubmissionForReview(ctx, monitor.FlagInput{
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		ChallengeID:  sub.ChallengeID,
		Reason:       res.Warnings[0].Message,
		Severity:     monitor.SeverityMedium,
		AutoFlags:    flags,
		FraudScore:   fraudScore(res),
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("submission_id", sub.ID).
			Msg("Failed to flag submission for review")
		return
	}
	res.Flagged = true
}

// fraudScore scales detector confidence by risk into [0, 1].
func fraudScore(res *Result) float64 {
	return res.Confidence * float64(res.FraudRisk.Rank()) / 2
}
