package api

import (
	"encoding/json"
	"net/http"

	"github.com/example/storefront/internal/auth"
)

// AdminCredentials hold the configured back-office login: a username and a
// bcrypt hash of the password. There is no user registry; account management
// lives outside this service.
type AdminCredentials struct {
	Username     string
	PasswordHash string
}

type AuthHandlers struct {
	creds      AdminCredentials
	jwtService *auth.JWTService
}

func NewAuthHandlers(creds AdminCredentials, jwtService *auth.JWTService) *AuthHandlers {
	return &AuthHandlers{
		creds:      creds,
		jwtService: jwtService,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username != h.creds.Username || !auth.CheckPassword(req.Password, h.creds.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.Username, "admin")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	respondJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}
