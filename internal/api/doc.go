// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package api exposes the validator and the security monitor over HTTP for
operators and the submission pipeline.

Routes:

	GET   /healthz
	GET   /metrics
	POST  /api/v1/submissions/validate
	GET   /api/v1/validator/config
	PATCH /api/v1/validator/config
	GET   /api/v1/security/metrics?timeframe=hour|day|week|month
	GET   /api/v1/security/alerts
	POST  /api/v1/security/alerts/{id}/acknowledge
	GET   /api/v1/security/flagged?status=&user_id=&limit=
	POST  /api/v1/security/flagged/{id}/review
	GET   /api/v1/security/users/{id}/events?limit=
	POST  /api/v1/security/events/{id}/resolve

Everything under /api/v1 is rate limited per client IP (go-chi/httprate) and,
when an API token is configured, requires "Authorization: Bearer <token>".

Responses use the models.APIResponse envelope:

	{"status":"success","data":{...},"metadata":{"timestamp":"...","query_time_ms":3}}
	{"status":"error","data":null,"error":{"code":"NOT_FOUND","message":"..."},"metadata":{...}}

A rejected submission is still a successful validate call: the verdict is in
data.decision and data.errors, and the status code is 200.
*/
package api
