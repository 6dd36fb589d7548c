package controllers

import (
	"net/http"

	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/api/validators"
	"github.com/coursevault/coursevault-backend/internal/fingerprint"
	"github.com/coursevault/coursevault-backend/pkg/logger"
)

type fingerprintRequest struct {
	UserAgent  string `json:"user_agent"`
	Language   string `json:"language"`
	Timezone   string `json:"timezone"`
	Screen     string `json:"screen"`
	Platform   string `json:"platform"`
	CanvasHash string `json:"canvas_hash"`
}

func (r fingerprintRequest) toSignals() fingerprint.Signals {
	return fingerprint.Signals{
		UserAgent:  r.UserAgent,
		Language:   r.Language,
		Timezone:   r.Timezone,
		Screen:     r.Screen,
		Platform:   r.Platform,
		CanvasHash: r.CanvasHash,
	}
}

type fingerprintResponse struct {
	DeviceFingerprint string `json:"device_fingerprint"`
	Degraded          bool   `json:"degraded"`
}

// DeviceFingerprint derives the stable device fingerprint from the
// signals the player collects.
func DeviceFingerprint(provider fingerprint.Provider, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload fingerprintRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signals := payload.toSignals()
		responses.WriteSuccess(w, fingerprintResponse{
			DeviceFingerprint: provider.Current(signals),
			Degraded:          signals.Degraded(),
		})
	}
}
