package controllers

import (
	"net/http"

	"github.com/coursevault/coursevault-backend/api/middleware"
	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/api/validators"
	"github.com/coursevault/coursevault-backend/internal/access"
	"github.com/coursevault/coursevault-backend/pkg/logger"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

type accessVerifyRequest struct {
	CourseID          string `json:"course_id" validate:"required"`
	DeviceFingerprint string `json:"device_fingerprint" validate:"required"`
}

// AccessVerify answers whether playback may start on the presenting
// device. A denial is a 200 with granted=false.
func AccessVerify(svc access.Verifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "access verifier unavailable"))
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		if userID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		var payload accessVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithCourseID(r.Context(), payload.CourseID)
		decision, err := svc.Verify(ctx, userID, payload.CourseID, payload.DeviceFingerprint)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, decision)
	}
}
