// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package models

import "time"

// Challenge is a business location users are asked to visit.
type Challenge struct {
	ID                       string        `json:"id" validate:"required"`
	Title                    string        `json:"title"`
	PartnerName              string        `json:"partner_name"`
	Location                 GPSCoordinate `json:"location"`
	VerificationRadiusMeters float64       `json:"verification_radius_meters" validate:"gte=0"`
	AllowedProofTypes        []ProofType   `json:"allowed_proof_types,omitempty"`
	MinAnswerLength          int           `json:"min_answer_length,omitempty" validate:"gte=0"`
	Points                   int           `json:"points"`
	StartsAt                 *time.Time    `json:"starts_at,omitempty"`
	EndsAt                   *time.Time    `json:"ends_at,omitempty"`
}

// IsActive reports whether the challenge accepts submissions at t.
// Open-ended windows are treated as unbounded.
func (c *Challenge) IsActive(t time.Time) bool {
	if c.StartsAt != nil && t.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && t.After(*c.EndsAt) {
		return false
	}
	return true
}

// Allows reports whether the challenge accepts proofs of type p.
// An empty allow-list accepts every known type.
func (c *Challenge) Allows(p ProofType) bool {
	if len(c.AllowedProofTypes) == 0 {
		return p.Valid()
	}
	for _, allowed := range c.AllowedProofTypes {
		if allowed == p {
			return true
		}
	}
	return false
}
