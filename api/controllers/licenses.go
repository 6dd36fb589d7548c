package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/coursevault/coursevault-backend/api/middleware"
	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/pkg/logger"
	"github.com/coursevault/coursevault-backend/pkg/models"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

// licenseStore is the slice of the binding store the license endpoints
// need.
type licenseStore interface {
	Get(ctx context.Context, userID, courseID string) (models.LicenseBinding, bool)
	ListByUser(ctx context.Context, userID string) []models.LicenseBinding
	Revoke(ctx context.Context, userID, courseID string) (bool, error)
}

type licenseResponse struct {
	CourseID          string    `json:"course_id"`
	LicenseKey        string    `json:"license_key"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	BoundAt           time.Time `json:"bound_at"`
	LastAccessAt      time.Time `json:"last_access_at"`
	IsValid           bool      `json:"is_valid"`
}

func licenseResponseFromModel(binding models.LicenseBinding) licenseResponse {
	return licenseResponse{
		CourseID:          binding.CourseID,
		LicenseKey:        binding.LicenseKey,
		DeviceFingerprint: binding.DeviceFingerprint,
		BoundAt:           binding.BoundAt,
		LastAccessAt:      binding.LastAccessAt,
		IsValid:           binding.IsValid,
	}
}

// LicenseList returns every binding generation recorded for the
// caller, newest first.
func LicenseList(store licenseStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "binding store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		bindings := store.ListByUser(r.Context(), userID)
		out := make([]licenseResponse, 0, len(bindings))
		for _, binding := range bindings {
			out = append(out, licenseResponseFromModel(binding))
		}
		responses.WriteSuccess(w, out)
	}
}

// LicenseGet returns the caller's current binding for a course.
func LicenseGet(store licenseStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "binding store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		courseID := chi.URLParam(r, "courseID")
		binding, ok := store.Get(r.Context(), userID, courseID)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no license for course"))
			return
		}
		responses.WriteSuccess(w, licenseResponseFromModel(binding))
	}
}

type licenseRevokeResponse struct {
	Revoked bool `json:"revoked"`
}

// LicenseRevoke invalidates the caller's active binding so a future
// purchase can re-bind the course to a new device. Revoking an absent
// or already revoked binding reports revoked=false.
func LicenseRevoke(store licenseStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "binding store unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		courseID := chi.URLParam(r, "courseID")
		ctx := logg.WithCourseID(r.Context(), courseID)
		revoked, err := store.Revoke(ctx, userID, courseID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, licenseRevokeResponse{Revoked: revoked})
	}
}
