package handlers

import (
	"nearme-service/internal/api/dto"
	"nearme-service/internal/platform/auth"
	"nearme-service/internal/services"
	"net/http"
)

type AuthHandler struct {
	Users  *services.UserService
	Issuer *auth.Issuer
}

// SignInAnonymously creates a fresh anonymous user and returns a session token.
func (h *AuthHandler) SignInAnonymously(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.SignInAnonymously(r.Context())
	if err != nil {
		writeServiceError(w, r, "sign in", err)
		return
	}

	token, err := h.Issuer.Issue(user.ID, user.Anonymous)
	if err != nil {
		writeServiceError(w, r, "issue token", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, dto.AuthResponse{
		UserID:      user.ID,
		Token:       token,
		DisplayName: user.Name(),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	user, err := h.Users.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "get user", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewUserResponse(*user))
}

func (h *AuthHandler) UpdateDisplayName(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.UpdateDisplayNameRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.Users.UpdateDisplayName(r.Context(), userID, req.DisplayName)
	if err != nil {
		writeServiceError(w, r, "update display name", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewUserResponse(*user))
}
