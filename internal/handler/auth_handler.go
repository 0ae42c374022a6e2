package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/leads-generator/enricher/internal/dto"
	"github.com/octobees/leads-generator/enricher/internal/service"
)

// AuthHandler exposes the token endpoint.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Token handles POST /auth/token requests.
func (h *AuthHandler) Token(c echo.Context) error {
	var req dto.TokenRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid payload")
	}

	req.ClientID = strings.TrimSpace(req.ClientID)
	if req.ClientID == "" || req.ClientSecret == "" {
		return Error(c, http.StatusBadRequest, "client_id and client_secret are required")
	}

	token, err := h.authService.IssueToken(req.ClientID, req.ClientSecret)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return Error(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrAuthDisabled):
			return Error(c, http.StatusNotFound, "authentication is not enabled")
		default:
			return Error(c, http.StatusInternalServerError, "unable to issue token")
		}
	}

	return Success(c, http.StatusOK, "token issued", dto.TokenResponse{AccessToken: token, TokenType: "Bearer"})
}
