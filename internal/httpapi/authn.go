package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

// withAuth resolves the bearer token and attaches the identity to the
// request context.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeChallenge(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}

		id, err := a.resolver.Resolve(r.Context(), token)
		obs.ObserveAuth("resolve", outcome(err))
		if err != nil {
			switch auth.KindOf(err) {
			case auth.KindInvalidCredentials:
				writeChallenge(w, r, http.StatusUnauthorized, "Could not validate credentials")
			case auth.KindAccountDisabled:
				writeChallenge(w, r, http.StatusForbidden, "User account is disabled")
			default:
				writeError(w, r, http.StatusInternalServerError, "Internal server error")
			}
			return
		}

		ctx := auth.ContextWithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin must run after withAuth.
func (a *API) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFromContext(r.Context())
		if !ok {
			writeChallenge(w, r, http.StatusUnauthorized, "Not authenticated")
			return
		}
		_, err := auth.RequireAdmin(id)
		obs.ObserveAuth("authorize", outcome(err))
		if err != nil {
			writeError(w, r, http.StatusForbidden, "You do not have permission to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// outcome is the metrics label for an auth result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ReplaceAll(auth.KindOf(err).String(), " ", "_")
}
