package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/entitled/app"
	"github.com/artpar/entitled/domain/override"
	"github.com/artpar/entitled/ports"
	"github.com/go-chi/chi/v5"
)

// UpsertOverrideRequest is the admin write payload. Enabled is a
// pointer so an omitted value is distinguishable from false.
type UpsertOverrideRequest struct {
	UserID     string     `json:"user_id"`
	FeatureKey string     `json:"feature_key"`
	Enabled    *bool      `json:"enabled"`
	Reason     string     `json:"reason,omitempty"`
	GrantedBy  string     `json:"granted_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// AuthMiddleware guards the admin endpoints with a bearer token checked
// against the configured bcrypt hash. No configured hash means the
// admin API is switched off entirely.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hash := h.tokenHash()
		if hash == "" {
			writeError(w, http.StatusForbidden, "admin_disabled", "Admin API is not configured")
			return
		}

		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Bearer token required")
			return
		}
		token := strings.TrimPrefix(auth, "Bearer ")

		if !h.hasher.Compare([]byte(hash), token) {
			h.logger.Warn().Str("path", r.URL.Path).Msg("admin auth rejected")
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid admin token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// UpsertOverride creates or replaces the override for a
// (user, feature) pair. 201 on create, 200 on replace.
func (h *Handler) UpsertOverride(w http.ResponseWriter, r *http.Request) {
	var req UpsertOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}

	res, err := h.overrides.Upsert(r.Context(), app.UpsertRequest{
		UserID:     req.UserID,
		FeatureKey: req.FeatureKey,
		Enabled:    req.Enabled,
		Reason:     req.Reason,
		GrantedBy:  req.GrantedBy,
		ExpiresAt:  req.ExpiresAt,
	})
	if err != nil {
		var verr *override.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "validation_failed", strings.Join(verr.Fields, "; "))
			return
		}
		h.logger.Error().Err(err).Msg("override upsert failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to store override")
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, overrideToResponse(res.Override, h.overrides.Now()))
}

// ListOverrides returns all overrides for a user, newest first.
// Expired records are included and flagged inactive.
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	list, err := h.overrides.List(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("override list failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list overrides")
		return
	}

	now := h.overrides.Now()
	out := make([]OverrideResponse, 0, len(list))
	for _, o := range list {
		out = append(out, overrideToResponse(o, now))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"overrides": out,
		"count":     len(out),
	})
}

// GetOverride returns a single override record.
func (h *Handler) GetOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	featureKey := chi.URLParam(r, "featureKey")

	o, err := h.overrides.Get(r.Context(), userID, featureKey)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Override not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("override get failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load override")
		return
	}
	writeJSON(w, http.StatusOK, overrideToResponse(o, h.overrides.Now()))
}

// DeleteOverride removes an override record.
func (h *Handler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	featureKey := chi.URLParam(r, "featureKey")

	err := h.overrides.Delete(r.Context(), userID, featureKey)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Override not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("override delete failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to delete override")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
