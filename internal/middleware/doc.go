// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

/*
Package middleware provides the net/http middleware used by the ops API.

All middleware has the chi signature func(http.Handler) http.Handler:

  - RequestID: X-Request-ID propagation plus correlation IDs for logging
  - AccessLog: one structured log line per request
  - PrometheusMetrics: request counts, latency and in-flight gauge
  - BearerToken: static API token check for the ops endpoints
  - MaxBodyBytes: request body size limit

Typical stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

	r.Route("/api/v1", func(r chi.Router) {
	    r.Use(middleware.BearerToken(cfg.Security.APIToken, nil))
	    r.Use(middleware.MaxBodyBytes(cfg.Server.MaxBodyBytes))
	    ...
	})

Metrics are labeled with the chi route pattern, not the raw path, so IDs in
URLs do not create new series.
*/
package middleware
