package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/repolens/repolens/src/models"
	"github.com/repolens/repolens/src/repositories"
	"golang.org/x/oauth2"
)

// OIDCConfig holds identity provider settings
type OIDCConfig struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// AuthService handles identity-provider sign-in and session tokens.
// Handlers never see the provider directly; they receive a resolved owner id
// from the session middleware.
type AuthService struct {
	users         repositories.UserRepository
	sessionSecret []byte
	sessionTTL    time.Duration

	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewAuthService creates an auth service that can mint and verify session
// tokens. Call ConfigureOIDC to enable identity-provider sign-in.
func NewAuthService(users repositories.UserRepository, sessionSecret string, sessionTTL time.Duration) (*AuthService, error) {
	if len(sessionSecret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters long")
	}
	return &AuthService{
		users:         users,
		sessionSecret: []byte(sessionSecret),
		sessionTTL:    sessionTTL,
	}, nil
}

// ConfigureOIDC discovers the identity provider and prepares the auth-code flow
func (as *AuthService) ConfigureOIDC(ctx context.Context, cfg OIDCConfig) error {
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	as.verifier = provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	as.oauth2Config = &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return nil
}

// OIDCEnabled reports whether identity-provider sign-in is configured
func (as *AuthService) OIDCEnabled() bool {
	return as.oauth2Config != nil
}

// AuthCodeURL returns the provider's authorization URL for the given state
func (as *AuthService) AuthCodeURL(state string) string {
	return as.oauth2Config.AuthCodeURL(state)
}

// GenerateState returns a random value binding the login redirect to its callback
func (as *AuthService) GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HandleCallback exchanges the authorization code, verifies the ID token and
// resolves the signed-in user, provisioning the row on first sign-in
func (as *AuthService) HandleCallback(ctx context.Context, code string) (*models.User, error) {
	token, err := as.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in provider response")
	}

	idToken, err := as.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("identity provider returned no email")
	}

	return as.users.GetOrCreateByEmail(ctx, claims.Email, claims.Name)
}

// SessionClaims contains JWT claims for dashboard sessions
type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// GenerateSessionToken creates a session JWT for a signed-in user
func (as *AuthService) GenerateSessionToken(user *models.User) (string, error) {
	claims := SessionClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "repolens",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.sessionSecret)
}

// VerifySessionToken parses a session JWT and returns the owner id it carries
func (as *AuthService) VerifySessionToken(tokenString string) (uuid.UUID, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return as.sessionSecret, nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid session token: %w", err)
	}
	if !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid session token")
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid user id in session token: %w", err)
	}
	return userID, nil
}
