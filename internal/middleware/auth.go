package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"drivemirror/internal/auth"
	"drivemirror/internal/domain/models"
	"drivemirror/internal/httputil"
)

// Auth requires a valid bearer token and stores its claims on the request.
// A nil verifier admits every request as a local admin; main only wires that
// in the dev environment.
func Auth(verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				next.ServeHTTP(w, httputil.WithClaims(r, devClaims()))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("authentication failed", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			next.ServeHTTP(w, httputil.WithClaims(r, claims))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func devClaims() *models.Claims {
	claims := &models.Claims{Role: models.RoleAdmin}
	claims.Subject = "dev"
	return claims
}
