package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/models"
)

type fakeUsers map[string]*models.User

func (f fakeUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, database.ErrUserNotFound
}

func authRouter(a *Auth, user *models.User) *gin.Engine {
	r := gin.New()
	r.POST("/login", func(c *gin.Context) {
		if err := a.Login(c, user); err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	r.POST("/logout", func(c *gin.Context) {
		_ = a.Logout(c)
		c.Status(http.StatusOK)
	})
	r.GET("/me", a.RequireUser(), func(c *gin.Context) {
		c.String(http.StatusOK, GetUser(c).Email)
	})
	r.GET("/maybe", a.OptionalUser(), func(c *gin.Context) {
		if u := GetUser(c); u != nil {
			c.String(http.StatusOK, u.Email)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	return r
}

func do(r http.Handler, method, path string, cookies []*http.Cookie, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_SessionLifecycle(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@example.com"}
	a := NewAuth(fakeUsers{"u1": user}, "jwt-secret", "session-secret", time.Hour, false)
	r := authRouter(a, user)

	w := do(r, http.MethodGet, "/me", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(r, http.MethodGet, "/maybe", nil, nil)
	assert.Equal(t, "anonymous", w.Body.String())

	w = do(r, http.MethodPost, "/login", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.True(t, cookies[0].HttpOnly)

	w = do(r, http.MethodGet, "/me", cookies, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a@example.com", w.Body.String())

	w = do(r, http.MethodPost, "/logout", cookies, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestAuth_BearerToken(t *testing.T) {
	user := &models.User{ID: "u1", Email: "a@example.com"}
	a := NewAuth(fakeUsers{"u1": user}, "jwt-secret", "session-secret", time.Hour, false)
	r := authRouter(a, user)

	token, err := GenerateJWT(user, "jwt-secret")
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)

	magic, err := GenerateMagicLinkToken(user, "jwt-secret")
	require.NoError(t, err)
	w = do(r, http.MethodGet, "/me", nil, map[string]string{"Authorization": "Bearer " + magic})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_DeletedUser(t *testing.T) {
	user := &models.User{ID: "gone", Email: "gone@example.com"}
	a := NewAuth(fakeUsers{}, "jwt-secret", "session-secret", time.Hour, false)
	r := authRouter(a, user)

	w := do(r, http.MethodPost, "/login", nil, nil)
	w = do(r, http.MethodGet, "/me", w.Result().Cookies(), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := do(r, http.MethodGet, "/", nil, nil)
	assert.Len(t, w.Body.String(), 20)
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	w = do(r, http.MethodGet, "/", nil, map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Body.String())
}
