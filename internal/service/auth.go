package service

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/octobees/leads-generator/enricher/internal/auth"
)

var (
	// ErrInvalidCredentials is returned for unknown clients or wrong secrets.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAuthDisabled is returned when no signing secret is configured.
	ErrAuthDisabled = errors.New("authentication is not configured")
)

// AuthService exchanges client credentials for bearer tokens.
type AuthService struct {
	clients map[string][]byte
	jwt     *auth.JWTManager
}

// NewAuthService constructs an AuthService from client id to bcrypt hash pairs.
func NewAuthService(clients map[string]string, jwtManager *auth.JWTManager) *AuthService {
	hashes := make(map[string][]byte, len(clients))
	for id, hash := range clients {
		hashes[id] = []byte(hash)
	}
	return &AuthService{clients: hashes, jwt: jwtManager}
}

// IssueToken validates the client secret and returns a service token.
func (s *AuthService) IssueToken(clientID, secret string) (string, error) {
	if !s.jwt.Enabled() {
		return "", ErrAuthDisabled
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" || secret == "" {
		return "", errors.New("client_id and client_secret must not be empty")
	}

	hash, ok := s.clients[clientID]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return "", ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(clientID, auth.RoleService)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

// HashSecret produces the bcrypt hash stored for a client secret.
func HashSecret(secret string) (string, error) {
	if len(secret) < 12 {
		return "", errors.New("client secret must be at least 12 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}
