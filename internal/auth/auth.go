package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	config "github.com/Keoroanthony/nuomi-store/configs"
	"github.com/Keoroanthony/nuomi-store/internal/apperr"
	"github.com/Keoroanthony/nuomi-store/internal/models"
)

const (
	SessionName    = "nuomi_session"
	SessionUserKey = "user_id"
	sessionState   = "oauth_state"
	contextUserKey = "user"
)

// Claims are the identity token fields mirrored into the users table. Role
// comes from the provider's user metadata and wins over the mirror.
type Claims struct {
	Sub               string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	Phone             string `json:"phone_number"`
	Role              string `json:"role"`
}

type UserStore interface {
	Get(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, u *models.User) error
}

// Exchanger is satisfied by *oauth2.Config.
type Exchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// VerifyFunc checks a raw ID token and returns its claims.
type VerifyFunc func(ctx context.Context, rawIDToken string) (*Claims, error)

type Authenticator struct {
	oauth2 Exchanger
	verify VerifyFunc
	users  UserStore
}

func New(ctx context.Context, cfg config.OIDCConfig, users UserStore) (*Authenticator, error) {
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("OIDC provider init error: %w", err)
	}

	verifier := provider.Verifier(&oidc.Config{ClientID: cfg.ClientID})
	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email", "phone"},
	}

	verify := func(ctx context.Context, raw string) (*Claims, error) {
		idToken, err := verifier.Verify(ctx, raw)
		if err != nil {
			return nil, err
		}
		var claims Claims
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("claims parse error: %w", err)
		}
		return &claims, nil
	}
	return NewWith(oauth2Config, verify, users), nil
}

func NewWith(exchanger Exchanger, verify VerifyFunc, users UserStore) *Authenticator {
	return &Authenticator{oauth2: exchanger, verify: verify, users: users}
}

// ResolveRole returns the first valid role of identity, mirror and fallback.
func ResolveRole(identity, mirror, fallback models.Role) models.Role {
	for _, r := range []models.Role{identity, mirror} {
		if r.Valid() {
			return r
		}
	}
	return fallback
}

// GET /auth/login
func (a *Authenticator) Login(c *gin.Context) {
	state := uuid.NewString()
	sess := sessions.Default(c)
	sess.Set(sessionState, state)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}
	c.Redirect(http.StatusFound, a.oauth2.AuthCodeURL(state))
}

// GET /auth/callback
func (a *Authenticator) Callback(c *gin.Context) {
	sess := sessions.Default(c)
	if want, _ := sess.Get(sessionState).(string); want == "" || c.Query("state") != want {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid state"})
		return
	}
	sess.Delete(sessionState)

	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code missing"})
		return
	}

	ctx := c.Request.Context()
	token, err := a.oauth2.Exchange(ctx, code)
	if err != nil {
		slog.Warn("Token exchange failed", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "token exchange failed"})
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no id_token in token response"})
		return
	}

	claims, err := a.verify(ctx, rawIDToken)
	if err != nil {
		slog.Warn("ID token verification failed", "err", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token verification failed"})
		return
	}

	user, err := a.mirror(ctx, claims)
	if err != nil {
		slog.Error("Failed to mirror user", "sub", claims.Sub, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save user"})
		return
	}

	sess.Set(SessionUserKey, user.ID)
	if err := sess.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save session"})
		return
	}

	slog.Info("User logged in", "user_id", user.ID, "role", user.Role)
	c.JSON(http.StatusOK, gin.H{"message": "logged in", "user": user})
}

// mirror copies the identity into the users table, keeping profile fields
// the token does not carry.
func (a *Authenticator) mirror(ctx context.Context, claims *Claims) (*models.User, error) {
	user := &models.User{ID: claims.Sub}
	existing, err := a.users.Get(ctx, claims.Sub)
	if err == nil {
		user = existing
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	user.IdentityRole = ""
	if r := models.Role(claims.Role); r.Valid() {
		user.IdentityRole = r
	}
	user.Role = ResolveRole(user.IdentityRole, user.Role, models.RoleCustomer)
	if claims.Name != "" {
		user.Name = claims.Name
	}
	if claims.PreferredUsername != "" {
		user.Username = claims.PreferredUsername
	}
	if claims.Email != "" {
		user.Email = claims.Email
	}
	if claims.Phone != "" {
		user.Phone = claims.Phone
	}

	if err := a.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// POST /auth/logout
func Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// RequireAuth ensures the user is logged in and injects *models.User into
// the context.
func RequireAuth(users UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		userID, ok := sess.Get(SessionUserKey).(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		user, err := users.Get(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

// RequireAdmin must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(contextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
