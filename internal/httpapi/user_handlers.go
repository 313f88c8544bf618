package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/users"
)

type userResponse struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Budget   float64   `json:"budget"`
	Role     auth.Role `json:"role"`
	Disabled bool      `json:"disabled"`
}

func toUserResponse(u users.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Budget:   u.Budget,
		Role:     u.Role,
		Disabled: u.Disabled,
	}
}

type createUserRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Budget   *float64 `json:"budget"`
}

type selfUpdateRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Budget   *float64 `json:"budget"`
}

type adminUpdateRequest struct {
	Username *string  `json:"username"`
	Password *string  `json:"password"`
	Budget   *float64 `json:"budget"`
	Role     *string  `json:"role"`
	Disabled *bool    `json:"disabled"`
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Budget == nil {
		writeFieldError(w, r, "budget", "is required")
		return
	}
	u, err := a.users.Create(r.Context(), users.NewUser{
		Username: req.Username,
		Password: req.Password,
		Budget:   *req.Budget,
	})
	if err != nil {
		a.handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	u, err := a.users.Get(r.Context(), id.ID)
	if err != nil {
		a.handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (a *API) handleSelfUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.IdentityFromContext(r.Context())
	var req selfUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Budget == nil {
		writeFieldError(w, r, "budget", "is required")
		return
	}
	u, err := a.users.SelfUpdate(r.Context(), id.ID, users.SelfUpdate{
		Username: req.Username,
		Password: req.Password,
		Budget:   *req.Budget,
	})
	if err != nil {
		a.handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (a *API) handleAdminUpdate(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	u, err := a.users.AdminUpdate(r.Context(), chi.URLParam(r, "id"), users.AdminUpdate{
		Username: req.Username,
		Password: req.Password,
		Budget:   req.Budget,
		Role:     req.Role,
		Disabled: req.Disabled,
	})
	if err != nil {
		a.handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

func (a *API) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.users.Delete(r.Context(), id); err != nil {
		a.handleUserError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("User with id %s has been deleted.", id),
	})
}

func (a *API) handleUserError(w http.ResponseWriter, r *http.Request, err error) {
	if ve, ok := users.IsValidation(err); ok {
		writeFieldError(w, r, ve.Field, ve.Message)
		return
	}
	switch {
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "User not found")
	default:
		a.logger.ErrorContext(r.Context(), "user operation failed",
			"request_id", RequestIDFromContext(r.Context()),
			"err", err,
		)
		writeError(w, r, http.StatusInternalServerError, "Internal server error")
	}
}

func writeFieldError(w http.ResponseWriter, r *http.Request, field, msg string) {
	payload := map[string]any{
		"error": field + " " + msg,
		"field": field,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, http.StatusUnprocessableEntity, payload)
}
