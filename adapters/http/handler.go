// Package http provides the HTTP transport for the entitlement service.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/entitled/adapters/metrics"
	"github.com/artpar/entitled/app"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/domain/tier"
	"github.com/artpar/entitled/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler exposes the access check and admin endpoints.
type Handler struct {
	gate      *app.GateService
	overrides *app.OverrideService
	resolver  *app.ResolverService
	hasher    ports.Hasher
	tokenHash func() string // current admin token hash; hot reloadable
	ping      func(ctx context.Context) error
	logger    zerolog.Logger
	metrics   *metrics.Collector
}

// Deps contains dependencies for the HTTP handler.
type Deps struct {
	Gate      *app.GateService
	Overrides *app.OverrideService
	Resolver  *app.ResolverService
	Hasher    ports.Hasher
	TokenHash func() string
	Ping      func(ctx context.Context) error // optional store health probe
	Logger    zerolog.Logger
	Metrics   *metrics.Collector
}

// NewHandler creates a new HTTP handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		gate:      deps.Gate,
		overrides: deps.Overrides,
		resolver:  deps.Resolver,
		hasher:    deps.Hasher,
		tokenHash: deps.TokenHash,
		ping:      deps.Ping,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	MetricsEnabled bool
	MetricsPath    string
}

// Router builds the service router.
func (h *Handler) Router(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if h.metrics != nil {
		r.Use(NewMetricsMiddleware(h.metrics))
	}

	r.Get("/healthz", h.Health)

	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/access/check", h.Check)
		r.Get("/tiers", h.ListTiers)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Put("/overrides", h.UpsertOverride)
			r.Get("/overrides/{userID}", h.ListOverrides)
			r.Get("/overrides/{userID}/{featureKey}", h.GetOverride)
			r.Delete("/overrides/{userID}/{featureKey}", h.DeleteOverride)
		})
	})

	return r
}

// -----------------------------------------------------------------------------
// Access check
// -----------------------------------------------------------------------------

// CheckResponse is the access decision payload. A denial is a normal
// answer, not an error: both grant and deny return 200.
type CheckResponse struct {
	Allowed      bool              `json:"allowed"`
	Reason       string            `json:"reason"`
	Tier         string            `json:"tier"`
	RequiredTier string            `json:"required_tier,omitempty"`
	UpgradeTier  string            `json:"upgrade_tier,omitempty"`
	Override     *OverrideResponse `json:"override,omitempty"`
}

// Check answers one access question for the identity in the headers.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
	rawTier := strings.TrimSpace(r.Header.Get("X-User-Tier"))
	featureKey := strings.TrimSpace(r.URL.Query().Get("feature"))

	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing_user", "X-User-ID header is required")
		return
	}
	if featureKey == "" {
		writeError(w, http.StatusBadRequest, "missing_feature", "feature query parameter is required")
		return
	}
	userTier, err := tier.ParseTier(rawTier)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown_tier", "X-User-Tier must be one of: free, pro, elite")
		return
	}

	res, err := h.gate.Check(r.Context(), app.Identity{UserID: userID, Tier: userTier}, featureKey)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("access check failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to evaluate access")
		return
	}

	resp := CheckResponse{
		Allowed:      res.Allowed,
		Reason:       string(res.Decision.Reason),
		Tier:         string(res.Decision.Tier),
		RequiredTier: string(res.Decision.RequiredTier),
		UpgradeTier:  string(res.UpgradeTier),
	}
	if res.Decision.Override != nil {
		o := overrideToResponse(*res.Decision.Override, h.overrides.Now())
		resp.Override = &o
	}
	writeJSON(w, http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Tiers
// -----------------------------------------------------------------------------

// TierResponse describes one tier of the catalog.
type TierResponse struct {
	ID           string   `json:"id"`
	Rank         int      `json:"rank"`
	PriceMonthly int64    `json:"price_monthly"`
	Features     []string `json:"features"`
}

// ListTiers returns the catalog in ascending rank order.
func (h *Handler) ListTiers(w http.ResponseWriter, r *http.Request) {
	catalog := h.resolver.Config().Catalog

	out := make([]TierResponse, 0, len(tier.All()))
	for _, t := range tier.All() {
		rank, err := catalog.RankOf(t)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "Catalog lookup failed")
			return
		}
		price, _ := catalog.PriceOf(t)
		features, _ := catalog.FeaturesOf(t)
		out = append(out, TierResponse{
			ID:           string(t),
			Rank:         rank,
			PriceMonthly: price,
			Features:     features,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tiers": out,
	})
}

// -----------------------------------------------------------------------------
// Health
// -----------------------------------------------------------------------------

// Health reports liveness, probing the override store when a probe is
// configured.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -----------------------------------------------------------------------------
// Shared response shapes and helpers
// -----------------------------------------------------------------------------

// OverrideResponse is the wire form of an override record. Active is
// computed against the service clock at render time; expired records
// still render, flagged inactive.
type OverrideResponse struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	FeatureKey string     `json:"feature_key"`
	Enabled    bool       `json:"enabled"`
	Reason     string     `json:"reason,omitempty"`
	GrantedBy  string     `json:"granted_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Active     bool       `json:"active"`
}

func overrideToResponse(o override.Override, now time.Time) OverrideResponse {
	return OverrideResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		FeatureKey: o.FeatureKey,
		Enabled:    o.Enabled,
		Reason:     o.Reason,
		GrantedBy:  o.GrantedBy,
		ExpiresAt:  o.ExpiresAt,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
		Active:     o.ActiveAt(now),
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

// NewLoggingMiddleware creates middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start).Seconds()
			status := statusLabel(ww.Status())
			path := normalizePath(r.URL.Path)

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(duration)
		})
	}
}

// normalizePath collapses per-user path segments so metric cardinality
// stays bounded.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/admin/overrides/") {
		return "/v1/admin/overrides/{id}"
	}
	return path
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}
