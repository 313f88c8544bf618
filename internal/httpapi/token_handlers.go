package httpapi

import (
	"net/http"
	"time"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/obs"
)

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// handleToken implements the OAuth2 password grant over a form body.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid form body")
		return
	}
	if grant := r.PostForm.Get("grant_type"); grant != "password" {
		writeError(w, r, http.StatusBadRequest, `grant_type must be "password"`)
		return
	}

	id, err := a.authn.Authenticate(r.Context(), r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		obs.ObserveAuth("authenticate", outcome(err))
		if auth.KindOf(err) == auth.KindInvalidCredentials {
			writeChallenge(w, r, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	if id.Disabled {
		obs.ObserveAuth("authenticate", outcome(auth.ErrAccountDisabled))
		writeChallenge(w, r, http.StatusForbidden, "User account is disabled")
		return
	}
	obs.ObserveAuth("authenticate", outcome(nil))

	if a.users != nil {
		if err := a.users.UpgradeHash(r.Context(), id.ID, r.PostForm.Get("password")); err != nil {
			a.logger.WarnContext(r.Context(), "password hash upgrade failed", "user_id", id.ID, "err", err)
		}
	}

	token, expiresAt, err := a.tokens.Issue(id.ID, a.tokens.TTL())
	if err != nil {
		a.logger.ErrorContext(r.Context(), "token issue failed", "user_id", id.ID, "err", err)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	a.logger.InfoContext(r.Context(), "token issued", "user_id", id.ID, "expires_at", expiresAt)

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   expiresAt,
	})
}
