package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/session"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"makosite/internal/config"
	"makosite/internal/directory"
	"makosite/internal/middleware"
	"makosite/internal/models"
)

// AuthHandler handles OIDC authentication flows. Login and logout are
// published to the directory pool so admin caches follow the session.
type AuthHandler struct {
	provider     *oidc.Provider
	oauth2Config oauth2.Config
	verifier     *oidc.IDTokenVerifier
	pool         *directory.Pool
	cfg          *config.Config
	logger       *zap.Logger
}

// NewAuthHandler creates a new auth handler with OIDC configuration.
func NewAuthHandler(ctx context.Context, cfg *config.Config, pool *directory.Pool, logger *zap.Logger) (*AuthHandler, error) {
	provider, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, err
	}

	oauth2Config := oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		RedirectURL:  cfg.OIDCRedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return &AuthHandler{
		provider:     provider,
		oauth2Config: oauth2Config,
		verifier:     verifier,
		pool:         pool,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// Login initiates the OIDC login flow.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	state := generateState()

	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}
	sess.Set("oauth_state", state)

	url := h.oauth2Config.AuthCodeURL(state)
	return c.Redirect().To(url)
}

// Callback handles the OIDC callback after authentication.
func (h *AuthHandler) Callback(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return fiber.NewError(fiber.StatusInternalServerError, "session not available")
	}

	// Verify state
	savedState, _ := sess.Get("oauth_state").(string)
	if savedState == "" || savedState != c.Query("state") {
		return fiber.NewError(fiber.StatusBadRequest, "invalid state")
	}
	sess.Delete("oauth_state")

	// Exchange code for token
	oauth2Token, err := h.oauth2Config.Exchange(c.Context(), c.Query("code"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to exchange code")
	}

	// Extract and verify ID token
	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return fiber.NewError(fiber.StatusBadRequest, "missing id_token")
	}

	idToken, err := h.verifier.Verify(c.Context(), rawIDToken)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid id_token")
	}

	claims := make(map[string]any)
	if err := idToken.Claims(&claims); err != nil {
		return err
	}

	// Some OIDC providers only include minimal claims in the ID token
	userInfo, err := h.provider.UserInfo(c.Context(), oauth2.StaticTokenSource(oauth2Token))
	if err == nil {
		var userInfoClaims map[string]any
		if err := userInfo.Claims(&userInfoClaims); err == nil {
			// userinfo takes precedence
			for k, v := range userInfoClaims {
				claims[k] = v
			}
		}
	} else {
		h.logger.Warn("failed to fetch userinfo", zap.Error(err))
	}

	user := UserFromClaims(h.cfg, claims)
	if err := sess.Regenerate(); err != nil {
		return err
	}
	middleware.SaveUser(sess, user)
	h.pool.For(user)

	h.logger.Info("user signed in",
		zap.String("user", directory.IdentityKey(user)), zap.String("role", user.Role))

	return c.Redirect().To("/")
}

// Logout clears the user session and revokes the admin cache.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess != nil {
		if user := middleware.SessionUser(sess); user != nil {
			h.pool.SignOut(directory.IdentityKey(user))
			h.logger.Info("user signed out", zap.String("user", directory.IdentityKey(user)))
		}
		if err := sess.Destroy(); err != nil {
			return err
		}
	}
	return c.Redirect().To("/")
}

// UserFromClaims builds the identity from OIDC claims. The role comes from
// the configured role claim when present, otherwise from ADMIN_EMAILS.
func UserFromClaims(cfg *config.Config, claims map[string]any) *models.User {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	role := models.RoleUser
	if cfg.OIDCRoleClaim != "" && claimHas(claims[cfg.OIDCRoleClaim], models.RoleAdmin) {
		role = models.RoleAdmin
	}
	if cfg.IsAdminEmail(email) {
		role = models.RoleAdmin
	}

	return &models.User{ID: sub, Email: email, Name: name, Role: role}
}

// claimHas reports whether a string or string-array claim contains want,
// ignoring case.
func claimHas(claim any, want string) bool {
	switch v := claim.(type) {
	case string:
		return strings.EqualFold(v, want)
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}

func generateState() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
