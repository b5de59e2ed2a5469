// Checkpoint - Proof-of-Visit Trust and Abuse Prevention
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/checkpoint

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/checkpoint/internal/middleware"
)

// Router builds the chi route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil config uses DefaultChiMiddlewareConfig.
func NewRouter(handler *Handler, config *ChiMiddlewareConfig) *Router {
	return &Router{
		handler:       handler,
		chiMiddleware: NewChiMiddleware(config),
	}
}

// SetupChi returns the root http.Handler.
//
// Global middleware order: request ID, real IP, panic recovery, access
// log, metrics, CORS. The /api/v1 group adds rate limiting, the API token
// check and the body size limit.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method not allowed", nil)
	})

	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(router.chiMiddleware.Auth())
		r.Use(router.chiMiddleware.BodyLimit())

		r.Post("/submissions/validate", router.handler.ValidateSubmission)

		r.Get("/validator/config", router.handler.GetValidatorConfig)
		r.Patch("/validator/config", router.handler.PatchValidatorConfig)

		r.Route("/security", func(r chi.Router) {
			r.Get("/metrics", router.handler.GetSecurityMetrics)
			r.Get("/alerts", router.handler.GetActiveAlerts)
			r.Post("/alerts/{id}/acknowledge", router.handler.AcknowledgeAlert)
			r.Get("/flagged", router.handler.GetFlaggedSubmissions)
			r.Post("/flagged/{id}/review", router.handler.ReviewFlaggedSubmission)
			r.Get("/users/{id}/events", router.handler.GetUserSecurityEvents)
			r.Post("/events/{id}/resolve", router.handler.ResolveSecurityEvent)
		})
	})

	return r
}
