// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/checkpoint/internal/detection"
	"github.com/tomtom215/checkpoint/internal/models"
	"github.com/tomtom215/checkpoint/internal/monitor"
)

var (
	baseTime = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// A coffee shop in lower Manhattan and a point roughly 50 m north of it.
	shop      = models.GPSCoordinate{Latitude: 40.7128, Longitude: -74.0060}
	nearShop  = models.GPSCoordinate{Latitude: 40.71325, Longitude: -74.0060}
	farAway   = models.GPSCoordinate{Latitude: 40.7173, Longitude: -74.0060}
	elsewhere = models.GPSCoordinate{Latitude: 39.9526, Longitude: -75.1652}
)

func testChallenge() *models.Challenge {
	return &models.Challenge{
		ID:                       "ch-coffee",
		Title:                    "Try the espresso",
		Location:                 shop,
		VerificationRadiusMeters: 100,
	}
}

func testSubmission(id, user string, proofType models.ProofType) *models.Submission {
	loc := nearShop
	loc.Accuracy = models.Float64Ptr(8)
	return &models.Submission{
		ID:          id,
		ChallengeID: "ch-coffee",
		UserID:      user,
		ProofType:   proofType,
		Location:    loc,
		SubmittedAt: baseTime,
		Status:      models.StatusPending,
	}
}

func photoProof() *models.ProofSubmission {
	return &models.ProofSubmission{
		Type:  models.ProofTypePhoto,
		Photo: &models.PhotoProof{ImageURL: "https://img.example.com/espresso.jpg"},
	}
}

// recordingReporter captures every call the validator makes.
type recordingReporter struct {
	mu       sync.Mutex
	fraud    []*detection.Result
	failures [][]models.ValidationIssue
	flags    []monitor.FlagInput
	flagErr  error
}

func (r *recordingReporter) LogFraudDetection(_ context.Context, sub *models.Submission, res *detection.Result) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fraud = append(r.fraud, res)
	return []string{"fraud-" + sub.ID}
}

func (r *recordingReporter) LogValidationFailure(_ context.Context, sub *models.Submission, issues []models.ValidationIssue) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, issues)
	return []string{"failure-" + sub.ID}
}

func (r *recordingReporter) FlagSubmissionForReview(_ context.Context, in monitor.FlagInput) (*monitor.FlaggedSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.flagErr != nil {
		return nil, r.flagErr
	}
	r.flags = append(r.flags, in)
	return &monitor.FlaggedSubmission{SubmissionID: in.SubmissionID, ReviewStatus: monitor.ReviewPending}, nil
}

type detectorFunc func(ctx context.Context, in *detection.Input) (*detection.Result, error)

func (f detectorFunc) Assess(ctx context.Context, in *detection.Input) (*detection.Result, error) {
	return f(ctx, in)
}

func newTestValidator(t *testing.T, cfg Config, opts ...Option) *Validator {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return baseTime })}, opts...)
	v, err := NewValidator(cfg, opts...)
	if err != nil {
		t.Fatalf("NewValidator() error = %v", err)
	}
	return v
}

func countCode(issues []Issue, code models.ErrorCode) int {
	n := 0
	for i := range issues {
		if issues[i].Code == code {
			n++
		}
	}
	return n
}

func TestValidate_CleanNewUser(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	v := newTestValidator(t, DefaultConfig(), WithReporter(rep))

	res := v.Validate(context.Background(), testSubmission("s1", "t2_new", models.ProofTypePhoto),
		testChallenge(), nil, photoProof())

	if !res.IsValid {
		t.Fatalf("expected valid, got errors %+v", res.Errors)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Errorf("expected no issues, got errors=%+v warnings=%+v", res.Errors, res.Warnings)
	}
	if res.FraudRisk != detection.RiskMedium {
		t.Errorf("FraudRisk = %s, want medium for a user without history", res.FraudRisk)
	}
	if res.Decision != DecisionApprove {
		t.Errorf("Decision = %s, want approve", res.Decision)
	}
	if res.Fraud == nil || !res.Fraud.Has(detection.SignalLimitedEvidence) {
		t.Error("expected the detector result to carry LIMITED_EVIDENCE")
	}
	if res.ConfigVersion != 1 || !res.ValidatedAt.Equal(baseTime) {
		t.Errorf("unexpected version/time: %d %v", res.ConfigVersion, res.ValidatedAt)
	}
	if len(rep.failures) != 0 || len(rep.flags) != 0 {
		t.Errorf("clean submission must not be reported as a failure or flagged")
	}
}

func TestValidate_ProofStructure(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		proofType models.ProofType
		proof     *models.ProofSubmission
		mutate    func(*models.Submission, *models.Challenge)
		cfg       func(*Config)
		want      models.ErrorCode
		wantValid bool
	}{
		{
			name:      "photo without proof",
			proofType: models.ProofTypePhoto,
			want:      models.CodeMissingPhoto,
		},
		{
			name:      "photo with blank url",
			proofType: models.ProofTypePhoto,
			proof:     &models.ProofSubmission{Type: models.ProofTypePhoto, Photo: &models.PhotoProof{ImageURL: "  "}},
			want:      models.CodeMissingPhoto,
		},
		{
			name:      "photo with malformed url",
			proofType: models.ProofTypePhoto,
			proof:     &models.ProofSubmission{Type: models.ProofTypePhoto, Photo: &models.PhotoProof{ImageURL: "espresso.jpg"}},
			want:      models.CodeInvalidProofData,
		},
		{
			name:      "photo checks disabled",
			proofType: models.ProofTypePhoto,
			cfg:       func(c *Config) { c.PhotoValidationEnabled = false },
			wantValid: true,
		},
		{
			name:      "receipt missing",
			proofType: models.ProofTypeReceipt,
			proof:     &models.ProofSubmission{Type: models.ProofTypeReceipt},
			want:      models.CodeInvalidReceipt,
		},
		{
			name:      "receipt without business name",
			proofType: models.ProofTypeReceipt,
			proof: &models.ProofSubmission{Type: models.ProofTypeReceipt, Receipt: &models.ReceiptProof{
				Timestamp: models.TimePtr(baseTime.Add(-10 * time.Minute)),
			}},
			want: models.CodeInvalidReceipt,
		},
		{
			name:      "receipt without timestamp",
			proofType: models.ProofTypeReceipt,
			proof: &models.ProofSubmission{Type: models.ProofTypeReceipt, Receipt: &models.ReceiptProof{
				BusinessName: "Blue Bottle",
			}},
			want: models.CodeInvalidReceipt,
		},
		{
			name:      "complete receipt",
			proofType: models.ProofTypeReceipt,
			proof: &models.ProofSubmission{Type: models.ProofTypeReceipt, Receipt: &models.ReceiptProof{
				BusinessName: "Blue Bottle",
				Timestamp:    models.TimePtr(baseTime.Add(-10 * time.Minute)),
				Total:        4.5,
			}},
			wantValid: true,
		},
		{
			name:      "short answer",
			proofType: models.ProofTypeQuestion,
			proof:     &models.ProofSubmission{Type: models.ProofTypeQuestion, Question: &models.QuestionProof{Answer: " ab "}},
			want:      models.CodeAnswerTooShort,
		},
		{
			name:      "challenge minimum overrides default",
			proofType: models.ProofTypeQuestion,
			proof:     &models.ProofSubmission{Type: models.ProofTypeQuestion, Question: &models.QuestionProof{Answer: "red door"}},
			mutate:    func(_ *models.Submission, c *models.Challenge) { c.MinAnswerLength = 10 },
			want:      models.CodeAnswerTooShort,
		},
		{
			name:      "long enough answer",
			proofType: models.ProofTypeQuestion,
			proof:     &models.ProofSubmission{Type: models.ProofTypeQuestion, Question: &models.QuestionProof{Answer: "red door"}},
			wantValid: true,
		},
		{
			name:      "gps checkin needs no proof",
			proofType: models.ProofTypeGPSCheckin,
			wantValid: true,
		},
		{
			name:      "proof type mismatch",
			proofType: models.ProofTypePhoto,
			proof:     &models.ProofSubmission{Type: models.ProofTypeReceipt},
			want:      models.CodeProofTypeNotAllowed,
		},
		{
			name:      "proof type not allowed by challenge",
			proofType: models.ProofTypeGPSCheckin,
			mutate: func(_ *models.Submission, c *models.Challenge) {
				c.AllowedProofTypes = []models.ProofType{models.ProofTypePhoto}
			},
			want: models.CodeProofTypeNotAllowed,
		},
		{
			name:      "missing user",
			proofType: models.ProofTypeGPSCheckin,
			mutate:    func(s *models.Submission, _ *models.Challenge) { s.UserID = "" },
			want:      models.CodeMissingRequiredField,
		},
		{
			name:      "submission for another challenge",
			proofType: models.ProofTypeGPSCheckin,
			mutate:    func(s *models.Submission, _ *models.Challenge) { s.ChallengeID = "ch-other" },
			want:      models.CodeInvalidProofData,
		},
		{
			name:      "challenge ended",
			proofType: models.ProofTypeGPSCheckin,
			mutate: func(_ *models.Submission, c *models.Challenge) {
				c.EndsAt = models.TimePtr(baseTime.Add(-time.Hour))
			},
			want: models.CodeChallengeInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			v := newTestValidator(t, cfg)
			sub := testSubmission("s-"+tt.name, "t2_user", tt.proofType)
			ch := testChallenge()
			if tt.mutate != nil {
				tt.mutate(sub, ch)
			}

			res := v.Validate(context.Background(), sub, ch, nil, tt.proof)
			if tt.wantValid {
				if !res.IsValid {
					t.Fatalf("expected valid, got %+v", res.Errors)
				}
				return
			}
			if res.IsValid || res.Decision != DecisionReject {
				t.Fatalf("expected rejection, got valid=%v decision=%s", res.IsValid, res.Decision)
			}
			if !res.HasError(tt.want) {
				t.Errorf("expected %s, got %+v", tt.want, res.Errors)
			}
			for _, issue := range res.Errors {
				if issue.Source == models.SourceFraud {
					t.Errorf("structural failure reported as fraud: %+v", issue)
				}
			}
		})
	}
}

func TestValidate_NilInputs(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, DefaultConfig())

	res := v.Validate(context.Background(), nil, testChallenge(), nil, nil)
	if res.IsValid || !res.HasError(models.CodeMissingRequiredField) {
		t.Errorf("nil submission: %+v", res)
	}
	res = v.Validate(context.Background(), testSubmission("s1", "u1", models.ProofTypeGPSCheckin), nil, nil, nil)
	if res.IsValid || !res.HasError(models.CodeMissingRequiredField) {
		t.Errorf("nil challenge: %+v", res)
	}
}

func TestValidate_Location(t *testing.T) {
	t.Parallel()

	t.Run("too far is policy, not fraud", func(t *testing.T) {
		v := newTestValidator(t, DefaultConfig())
		sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
		sub.Location.Latitude = farAway.Latitude

		res := v.Validate(context.Background(), sub, testChallenge(), nil, nil)
		if !res.HasError(models.CodeLocationTooFar) {
			t.Fatalf("expected LOCATION_TOO_FAR, got %+v", res.Errors)
		}
		if res.HasError(models.CodeGPSSpoofingDetected) || res.HasError(models.CodeFraudDetected) {
			t.Errorf("distance failure must not be reported as fraud: %+v", res.Errors)
		}
		if res.Errors[0].Source != models.SourceLocation {
			t.Errorf("Source = %s, want location", res.Errors[0].Source)
		}
	})

	t.Run("challenge radius overrides default", func(t *testing.T) {
		v := newTestValidator(t, DefaultConfig())
		sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
		sub.Location.Latitude = farAway.Latitude
		ch := testChallenge()
		ch.VerificationRadiusMeters = 1000

		if res := v.Validate(context.Background(), sub, ch, nil, nil); !res.IsValid {
			t.Errorf("expected valid within a 1 km radius, got %+v", res.Errors)
		}
	})

	t.Run("default radius when challenge has none", func(t *testing.T) {
		v := newTestValidator(t, DefaultConfig())
		ch := testChallenge()
		ch.VerificationRadiusMeters = 0

		res := v.Validate(context.Background(), testSubmission("s1", "u1", models.ProofTypeGPSCheckin), ch, nil, nil)
		if !res.IsValid {
			t.Errorf("50 m is inside the 100 m default radius: %+v", res.Errors)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LocationValidationEnabled = false
		v := newTestValidator(t, cfg)
		sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
		sub.Location.Latitude = farAway.Latitude

		if res := v.Validate(context.Background(), sub, testChallenge(), nil, nil); res.HasError(models.CodeLocationTooFar) {
			t.Error("location check ran while disabled")
		}
	})

	t.Run("invalid coordinates reported once", func(t *testing.T) {
		v := newTestValidator(t, DefaultConfig())
		sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
		sub.Location.Latitude = 95

		res := v.Validate(context.Background(), sub, testChallenge(), nil, nil)
		if got := countCode(res.Errors, models.CodeInvalidGPSCoordinates); got != 1 {
			t.Errorf("INVALID_GPS_COORDINATES count = %d, want 1 (%+v)", got, res.Errors)
		}
		if res.FraudRisk != detection.RiskHigh {
			t.Errorf("FraudRisk = %s, want high", res.FraudRisk)
		}
	})

	t.Run("broken challenge location fails closed", func(t *testing.T) {
		v := newTestValidator(t, DefaultConfig())
		ch := testChallenge()
		ch.Location.Longitude = 200

		res := v.Validate(context.Background(), testSubmission("s1", "u1", models.ProofTypeGPSCheckin), ch, nil, nil)
		if res.IsValid || !res.HasError(models.CodeValidationSystemError) {
			t.Errorf("expected system error, got %+v", res.Errors)
		}
	})
}

func historyOf(user string, n int, spacing time.Duration) *models.UserSubmissionHistory {
	h := &models.UserSubmissionHistory{UserID: user}
	for i := 1; i <= n; i++ {
		loc := nearShop
		loc.Accuracy = models.Float64Ptr(10)
		h.Submissions = append(h.Submissions, models.Submission{
			ID:          fmt.Sprintf("prior-%d", i),
			ChallengeID: fmt.Sprintf("ch-prior-%d", i),
			UserID:      user,
			ProofType:   models.ProofTypeGPSCheckin,
			Location:    loc,
			SubmittedAt: baseTime.Add(-time.Duration(i) * spacing),
			Status:      models.StatusApproved,
		})
	}
	h.TotalSubmissions = n
	return h
}

func TestValidate_FraudMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		sub     func() *models.Submission
		history func() *models.UserSubmissionHistory
		want    models.ErrorCode
		signal  detection.SignalCode
	}{
		{
			name: "exact target match",
			sub: func() *models.Submission {
				s := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
				s.Location.Latitude, s.Location.Longitude = shop.Latitude, shop.Longitude
				return s
			},
			want:   models.CodeGPSSpoofingDetected,
			signal: detection.SignalExactTargetMatch,
		},
		{
			name: "unrealistic accuracy",
			sub: func() *models.Submission {
				s := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
				s.Location.Accuracy = models.Float64Ptr(0.1)
				return s
			},
			want:   models.CodeGPSSpoofingDetected,
			signal: detection.SignalUnrealisticAccuracy,
		},
		{
			name: "impossible travel",
			sub:  func() *models.Submission { return testSubmission("s1", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory {
				loc := elsewhere
				loc.Accuracy = models.Float64Ptr(10)
				return &models.UserSubmissionHistory{Submissions: []models.Submission{{
					ID: "prev", ChallengeID: "ch-prev", UserID: "u1", ProofType: models.ProofTypeGPSCheckin,
					Location: loc, SubmittedAt: baseTime.Add(-5 * time.Minute), Status: models.StatusApproved,
				}}}
			},
			want:   models.CodeImpossibleTravel,
			signal: detection.SignalImpossibleTravel,
		},
		{
			name:    "daily limit",
			sub:     func() *models.Submission { return testSubmission("s61", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory { return historyOf("u1", 60, 20*time.Minute) },
			want:    models.CodeRateLimitExceeded,
			signal:  detection.SignalDailyLimitExceeded,
		},
		{
			name:    "too frequent",
			sub:     func() *models.Submission { return testSubmission("s2", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory { return historyOf("u1", 1, 30*time.Second) },
			want:    models.CodeRateLimitExceeded,
			signal:  detection.SignalSubmissionTooFrequent,
		},
		{
			name: "duplicate challenge",
			sub:  func() *models.Submission { return testSubmission("s2", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory {
				h := historyOf("u1", 1, 3*time.Hour)
				h.Submissions[0].ChallengeID = "ch-coffee"
				return h
			},
			want:   models.CodeDuplicateSubmission,
			signal: detection.SignalDuplicateChallenge,
		},
		{
			name: "rejected earlier attempt is still a duplicate",
			sub:  func() *models.Submission { return testSubmission("s2", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory {
				h := historyOf("u1", 1, 2*time.Hour)
				h.Submissions[0].ChallengeID = "ch-coffee"
				h.Submissions[0].Status = models.StatusRejected
				return h
			},
			want:   models.CodeDuplicateSubmission,
			signal: detection.SignalDuplicateChallenge,
		},
		{
			name: "future device timestamp",
			sub: func() *models.Submission {
				s := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
				future := baseTime.Add(48 * time.Hour)
				s.Location.Timestamp = &future
				return s
			},
			history: func() *models.UserSubmissionHistory { return historyOf("u1", 12, 5*time.Hour) },
			want:    models.CodeGPSSpoofingDetected,
			signal:  detection.SignalTimestampSkew,
		},
		{
			name: "forged device timestamp keeps the daily limit",
			sub: func() *models.Submission {
				s := testSubmission("s61", "u1", models.ProofTypeGPSCheckin)
				future := baseTime.Add(48 * time.Hour)
				s.Location.Timestamp = &future
				return s
			},
			history: func() *models.UserSubmissionHistory { return historyOf("u1", 60, 23*time.Minute) },
			want:    models.CodeRateLimitExceeded,
			signal:  detection.SignalDailyLimitExceeded,
		},
		{
			name: "stale device timestamp",
			sub: func() *models.Submission {
				s := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
				past := baseTime.Add(-3 * time.Hour)
				s.Location.Timestamp = &past
				return s
			},
			want:   models.CodeGPSSpoofingDetected,
			signal: detection.SignalTimestampSkew,
		},
		{
			name: "prior recorded after the submission",
			sub:  func() *models.Submission { return testSubmission("s1", "u1", models.ProofTypeGPSCheckin) },
			history: func() *models.UserSubmissionHistory {
				h := historyOf("u1", 1, time.Hour)
				h.Submissions[0].SubmittedAt = baseTime.Add(45 * time.Second)
				return h
			},
			want:   models.CodeRateLimitExceeded,
			signal: detection.SignalSubmissionTooFrequent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep := &recordingReporter{}
			v := newTestValidator(t, DefaultConfig(), WithReporter(rep))
			var h *models.UserSubmissionHistory
			if tt.history != nil {
				h = tt.history()
			}

			res := v.Validate(context.Background(), tt.sub(), testChallenge(), h, nil)
			if res.IsValid || res.Decision != DecisionReject || res.FraudRisk != detection.RiskHigh {
				t.Fatalf("expected high-risk rejection, got valid=%v decision=%s risk=%s",
					res.IsValid, res.Decision, res.FraudRisk)
			}
			found := false
			for _, issue := range res.Errors {
				if issue.Code == tt.want && issue.Signal == string(tt.signal) {
					found = true
					if issue.Source != models.SourceFraud {
						t.Errorf("Source = %s, want fraud", issue.Source)
					}
				}
			}
			if !found {
				t.Errorf("expected %s from %s, got %+v", tt.want, tt.signal, res.Errors)
			}
			if len(rep.fraud) != 1 || len(rep.failures) != 1 {
				t.Errorf("reporter calls: fraud=%d failures=%d, want 1/1", len(rep.fraud), len(rep.failures))
			}
			if len(rep.flags) != 0 {
				t.Error("rejected submissions are not queued for review")
			}
		})
	}
}

func TestValidate_PolicyToggles(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, DefaultConfig())
	ctx := context.Background()

	dup := historyOf("u1", 1, 3*time.Hour)
	dup.Submissions[0].ChallengeID = "ch-coffee"
	busy := historyOf("u1", 60, 20*time.Minute)

	if res := v.Validate(ctx, testSubmission("s1", "u1", models.ProofTypeGPSCheckin), testChallenge(), dup, nil); !res.HasError(models.CodeDuplicateSubmission) {
		t.Fatalf("expected duplicate with prevention on, got %+v", res.Errors)
	}
	if res := v.Validate(ctx, testSubmission("s1", "u1", models.ProofTypeGPSCheckin), testChallenge(), busy, nil); !res.HasError(models.CodeRateLimitExceeded) {
		t.Fatalf("expected rate limit with limiting on, got %+v", res.Errors)
	}

	off := false
	if _, err := v.UpdateConfig(ConfigPatch{RateLimitingEnabled: &off, DuplicatePreventionEnabled: &off}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}

	if res := v.Validate(ctx, testSubmission("s1", "u1", models.ProofTypeGPSCheckin), testChallenge(), dup, nil); res.HasError(models.CodeDuplicateSubmission) {
		t.Errorf("duplicate reported with prevention off: %+v", res.Errors)
	}
	if res := v.Validate(ctx, testSubmission("s1", "u1", models.ProofTypeGPSCheckin), testChallenge(), busy, nil); res.HasError(models.CodeRateLimitExceeded) {
		t.Errorf("rate limit reported with limiting off: %+v", res.Errors)
	}

	if _, err := v.UpdateConfig(ConfigPatch{FraudDetectionEnabled: &off}); err != nil {
		t.Fatalf("UpdateConfig() error = %v", err)
	}
	sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
	sub.Location.Latitude, sub.Location.Longitude = shop.Latitude, shop.Longitude
	res := v.Validate(ctx, sub, testChallenge(), nil, nil)
	if res.Fraud != nil || !res.IsValid {
		t.Errorf("fraud detection ran while disabled: %+v", res)
	}
}

func TestValidate_WarningsQueueForReview(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{}
	v := newTestValidator(t, DefaultConfig(), WithReporter(rep))
	sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
	sub.Location.Accuracy = models.Float64Ptr(150)

	res := v.Validate(context.Background(), sub, testChallenge(), nil, nil)
	if !res.IsValid || res.Decision != DecisionReview {
		t.Fatalf("expected valid/review, got valid=%v decision=%s errors=%+v", res.IsValid, res.Decision, res.Errors)
	}
	if !res.HasWarning(models.CodePoorGPSAccuracy) {
		t.Fatalf("expected POOR_GPS_ACCURACY warning, got %+v", res.Warnings)
	}
	if !res.Flagged || len(rep.flags) != 1 {
		t.Fatalf("expected one review flag, got %d", len(rep.flags))
	}
	flag := rep.flags[0]
	if flag.SubmissionID != "s1" || flag.Severity != monitor.SeverityMedium {
		t.Errorf("unexpected flag input %+v", flag)
	}
	if len(flag.AutoFlags) != 1 || flag.AutoFlags[0] != string(models.CodePoorGPSAccuracy) {
		t.Errorf("AutoFlags = %v", flag.AutoFlags)
	}
	if flag.FraudScore <= 0 || flag.FraudScore > 1 {
		t.Errorf("FraudScore = %v, want (0, 1]", flag.FraudScore)
	}
}

func TestValidate_ReporterFailureKeepsVerdict(t *testing.T) {
	t.Parallel()

	rep := &recordingReporter{flagErr: errors.New("queue unavailable")}
	v := newTestValidator(t, DefaultConfig(), WithReporter(rep))
	sub := testSubmission("s1", "u1", models.ProofTypeGPSCheckin)
	sub.Location.Accuracy = models.Float64Ptr(150)

	res := v.Validate(context.Background(), sub, testChallenge(), nil, nil)
	if !res.IsValid || res.Decision != DecisionReview {
		t.Errorf("reporter failure changed the verdict: valid=%v decision=%s", res.IsValid, res.Decision)
	}
	if res.Flagged {
		t.Error("Flagged set although flagging failed")
	}
}

func TestValidate_DetectorFailureFailsClosed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		detector detectorFunc
	}{
		{"error", func(context.Context, *detection.Input) (*detection.Result, error) {
			return nil, errors.New("scoring service unavailable")
		}},
		{"panic", func(context.Context, *detection.Input) (*detection.Result, error) { panic("index out of range") }},
		{"nil result", func(context.Context, *detection.Input) (*detection.Result, error) { return nil, nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rep := &recordingReporter{}
			v := newTestValidator(t, DefaultConfig(), WithReporter(rep),
				WithDetectorFactory(func(detection.Config) FraudDetector { return tt.detector }))

			res := v.Validate(context.Background(), testSubmission("s1", "u1", models.ProofTypeGPSCheckin),
				testChallenge(), nil, nil)

			if res.IsValid || res.Decision != DecisionReject {
				t.Fatalf("detector failure must reject, got valid=%v decision=%s", res.IsValid, res.Decision)
			}
			if len(res.Errors) != 1 || res.Errors[0].Code != models.CodeValidationSystemError {
				t.Fatalf("expected a single VALIDATION_SYSTEM_ERROR, got %+v", res.Errors)
			}
			if res.Errors[0].Source != models.SourceSystem {
				t.Errorf("Source = %s, want system", res.Errors[0].Source)
			}
			if res.Warnings == nil || res.Errors == nil {
				t.Error("result slices must be non-nil")
			}
			if len(rep.failures) != 1 || rep.failures[0][0].Code != models.CodeValidationSystemError {
				t.Errorf("system failure not reported: %+v", rep.failures)
			}
		})
	}
}

func TestValidate_ConcurrentUsersGetDistinctEvents(t *testing.T) {
	t.Parallel()

	store := monitor.NewMemoryStore(0)
	svc := monitor.NewService(store, monitor.DefaultConfig())
	v := newTestValidator(t, DefaultConfig(), WithReporter(svc))

	const users = 50
	results := make([]*Result, users)
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sub := testSubmission(fmt.Sprintf("sub-%02d", i), fmt.Sprintf("t2_user%02d", i), models.ProofTypePhoto)
			sub.Location.Accuracy = models.Float64Ptr(150)
			results[i] = v.Validate(context.Background(), sub, testChallenge(), nil, photoProof())
		}(i)
	}
	wg.Wait()
	svc.Close()

	returned := make(map[string]bool)
	for i, res := range results {
		if res == nil || !res.IsValid || !res.Flagged {
			t.Fatalf("user %d: unexpected result %+v", i, res)
		}
		for _, id := range res.EventIDs {
			if returned[id] {
				t.Fatalf("event id %s returned twice", id)
			}
			returned[id] = true
		}
	}
	if len(returned) != users {
		t.Errorf("returned %d event ids, want %d", len(returned), users)
	}

	events, err := store.QueryEvents(context.Background(), monitor.EventFilter{})
	if err != nil {
		t.Fatalf("QueryEvents() error = %v", err)
	}
	stored := make(map[string]bool, len(events))
	for i := range events {
		stored[events[i].ID] = true
	}
	// One poor-accuracy event plus one submission_flagged event per user.
	if len(events) != 2*users || len(stored) != len(events) {
		t.Errorf("stored %d events with %d distinct ids, want %d", len(events), len(stored), 2*users)
	}
	for id := range returned {
		if !stored[id] {
			t.Errorf("returned event %s was not stored", id)
		}
	}

	flags, err := store.QueryFlags(context.Background(), monitor.FlagFilter{})
	if err != nil {
		t.Fatalf("QueryFlags() error = %v", err)
	}
	if len(flags) != users {
		t.Errorf("flags = %d, want %d", len(flags), users)
	}
}

func TestValidate_ConfigSnapshotsUnderConcurrency(t *testing.T) {
	t.Parallel()

	v := newTestValidator(t, DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	versions := make(chan uint64, 200)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				res := v.Validate(ctx, testSubmission("s1", "u1", models.ProofTypeGPSCheckin), testChallenge(), nil, nil)
				versions <- res.ConfigVersion
			}
		}()
	}
	for i := 0; i < 10; i++ {
		radius := float64(100 + i)
		if _, err := v.UpdateConfig(ConfigPatch{DefaultVerificationRadius: &radius}); err != nil {
			t.Fatalf("UpdateConfig() error = %v", err)
		}
	}
	wg.Wait()
	close(versions)

	final := v.Config().Version
	if final != 11 {
		t.Fatalf("final version = %d, want 11", final)
	}
	for ver := range versions {
		if ver < 1 || ver > final {
			t.Errorf("result carried unknown config version %d", ver)
		}
	}
}
