package handlers

import (
	"net/http"

	"markbook/backend/internal/auth"
	"markbook/backend/internal/gateway/util"
	"markbook/backend/internal/shared"
)

// AuthHandler serves the session endpoints
type AuthHandler struct {
	Auth     *auth.AuthService
	Security shared.SecurityConfig
}

// UserView is the public part of an account
type UserView struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Message string   `json:"message"`
	Token   string   `json:"token"`
	User    UserView `json:"user"`
}

func (h *AuthHandler) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Security.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.Security.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var reqBody shared.LoginInput
	if err := util.DecodeJSON(w, r, &reqBody); err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	token, user, err := h.Auth.Login(r.Context(), reqBody)
	if err != nil {
		util.HandleGRPCError(w, err)
		return
	}

	h.setCookie(w, token, int(h.Security.TokenLifetime().Seconds()))
	util.WriteJSON(w, http.StatusOK, LoginResponse{
		Message: "Login successful",
		Token:   token,
		User:    UserView{Username: user.Username, Role: user.Role},
	})
}

// Logout handles POST /auth/logout. It always succeeds for the client.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, err := util.ExtractToken(r, h.Security.CookieName); err == nil {
		if err := h.Auth.Logout(r.Context(), token); err != nil {
			util.HandleGRPCError(w, err)
			return
		}
	}

	h.setCookie(w, "", -1)
	util.WriteJSON(w, http.StatusOK, util.MessageResponse{Message: "Logout successful"})
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := util.PrincipalFrom(r.Context())
	if !ok {
		util.WriteJSONError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	util.WriteJSON(w, http.StatusOK, map[string]UserView{
		"user": {Username: principal.Username, Role: principal.Role},
	})
}
