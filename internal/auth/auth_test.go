package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/Keoroanthony/nuomi-store/internal/auth"
	"github.com/Keoroanthony/nuomi-store/internal/db"
	"github.com/Keoroanthony/nuomi-store/internal/models"
	"github.com/Keoroanthony/nuomi-store/internal/store"
)

const testSecret = "test-secret-key"

func TestResolveRole(t *testing.T) {
	tests := []struct {
		name             string
		identity, mirror models.Role
		want             models.Role
	}{
		{"Identity wins", models.RoleAdmin, models.RoleCustomer, models.RoleAdmin},
		{"Mirror when identity missing", "", models.RoleAdmin, models.RoleAdmin},
		{"Unknown identity ignored", "owner", models.RoleAdmin, models.RoleAdmin},
		{"Default", "", "", models.RoleCustomer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.ResolveRole(tt.identity, tt.mirror, models.RoleCustomer))
		})
	}
}

func setupAuthRouter(t *testing.T, verify auth.VerifyFunc) (*gin.Engine, *store.Stores) {
	gin.SetMode(gin.TestMode)

	testDB, err := db.OpenMemory(uuid.NewString())
	require.NoError(t, err)
	stores := store.New(testDB)

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer","id_token":"raw-id-token"}`))
	}))
	t.Cleanup(tokenServer.Close)

	oauthCfg := &oauth2.Config{
		ClientID:    "nuomi",
		RedirectURL: "http://localhost/auth/callback",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://idp.example.com/auth", TokenURL: tokenServer.URL},
	}
	authenticator := auth.NewWith(oauthCfg, verify, stores.Users)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sessions.Sessions(auth.SessionName, cookie.NewStore([]byte(testSecret))))
	r.GET("/auth/login", authenticator.Login)
	r.GET("/auth/callback", authenticator.Callback)
	r.POST("/auth/logout", auth.Logout)

	api := r.Group("/api", auth.RequireAuth(stores.Users))
	api.GET("/me", func(c *gin.Context) { c.JSON(http.StatusOK, auth.CurrentUser(c)) })
	api.GET("/admin", auth.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r, stores
}

func serve(r *gin.Engine, method, target, cookieHeader string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	if cookieHeader != "" {
		req.Header.Set("Cookie", cookieHeader)
	}
	r.ServeHTTP(recorder, req)
	return recorder
}

func TestLoginCallbackFlow(t *testing.T) {
	verify := func(_ context.Context, raw string) (*auth.Claims, error) {
		if raw != "raw-id-token" {
			return nil, errors.New("bad token")
		}
		return &auth.Claims{Sub: "sub-1", Name: "Sara Ali", Email: "sara@example.com", Role: "admin"}, nil
	}
	r, stores := setupAuthRouter(t, verify)
	ctx := context.Background()
	require.NoError(t, stores.Users.Upsert(ctx, &models.User{ID: "sub-1", City: "Jeddah", Role: models.RoleCustomer}))

	login := serve(r, http.MethodGet, "/auth/login", "")
	require.Equal(t, http.StatusFound, login.Code)
	loc, err := url.Parse(login.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	sessionCookie := login.Header().Get("Set-Cookie")

	t.Run("Rejects wrong state", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/auth/callback?state=forged&code=good-code", sessionCookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Rejects failed exchange", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/auth/callback?state="+state+"&code=bad-code", sessionCookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Mirrors identity and reconciles role", func(t *testing.T) {
		rec := serve(r, http.MethodGet, "/auth/callback?state="+state+"&code=good-code", sessionCookie)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		user, err := stores.Users.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, user.Role)
		assert.Equal(t, models.RoleAdmin, user.IdentityRole)
		assert.Equal(t, "Jeddah", user.City)
		assert.Equal(t, "sara@example.com", user.Email)

		loggedIn := rec.Header().Get("Set-Cookie")
		assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/api/admin", loggedIn).Code)

		me := serve(r, http.MethodGet, "/api/me", loggedIn)
		assert.Equal(t, http.StatusOK, me.Code)
		assert.Contains(t, me.Body.String(), `"id":"sub-1"`)

		out := serve(r, http.MethodPost, "/auth/logout", loggedIn)
		assert.Equal(t, http.StatusOK, out.Code)
		assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/me", out.Header().Get("Set-Cookie")).Code)
	})
}

func TestRequireAuthAndAdmin(t *testing.T) {
	r, stores := setupAuthRouter(t, nil)
	require.NoError(t, stores.Users.Upsert(context.Background(), &models.User{ID: "cust-1", Role: models.RoleCustomer}))

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/me", "").Code)

	customer := sessionFor(t, "cust-1")
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/api/me", customer).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/api/admin", customer).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/api/me", sessionFor(t, "ghost")).Code)
}

// sessionFor builds a session cookie carrying userID.
func sessionFor(t *testing.T, userID string) string {
	t.Helper()
	tempW := httptest.NewRecorder()
	tempC, _ := gin.CreateTestContext(tempW)
	tempC.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	sessions.Sessions(auth.SessionName, cookie.NewStore([]byte(testSecret)))(tempC)

	session := sessions.Default(tempC)
	session.Set(auth.SessionUserKey, userID)
	require.NoError(t, session.Save())
	return tempW.Header().Get("Set-Cookie")
}
