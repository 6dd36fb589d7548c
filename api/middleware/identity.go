package middleware

import (
	"net/http"
	"strings"

	"github.com/coursevault/coursevault-backend/api/responses"
	"github.com/coursevault/coursevault-backend/pkg/logger"

	pkgerrors "github.com/coursevault/coursevault-backend/pkg/errors"
)

const userIDHeader = "X-User-Id"

// Identity resolves the caller from the X-User-Id header set by the
// storefront gateway. The value is opaque here; authentication happens
// upstream.
func Identity(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(userIDHeader))
			if userID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity required"))
				return
			}

			ctx := WithUserID(r.Context(), userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
