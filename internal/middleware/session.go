package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
)

const (
	userContextKey = "user"
	sessionName    = "jdt_session"
	sessionUserKey = "user_id"
)

// UserLookup loads the user a session or token points at. *database.DB
// implements it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Auth resolves the current user from a session cookie or a Bearer token.
type Auth struct {
	users     UserLookup
	store     sessions.Store
	jwtSecret string
}

// NewAuth builds cookie sessions signed with sessionSecret. Cookies are
// marked Secure when secure is true (release mode behind HTTPS).
func NewAuth(users UserLookup, jwtSecret, sessionSecret string, maxAge time.Duration, secure bool) *Auth {
	store := sessions.NewCookieStore([]byte(sessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Auth{users: users, store: store, jwtSecret: jwtSecret}
}

// JWTSecret returns the signing secret for tokens this Auth accepts.
func (a *Auth) JWTSecret() string {
	return a.jwtSecret
}

// Login starts a session for user.
func (a *Auth) Login(c *gin.Context, user *models.User) error {
	// Get never fails hard: a tampered cookie just yields a fresh session.
	sess, _ := a.store.Get(c.Request, sessionName)
	sess.Values[sessionUserKey] = user.ID
	return sess.Save(c.Request, c.Writer)
}

// Logout ends the session.
func (a *Auth) Logout(c *gin.Context) error {
	sess, _ := a.store.Get(c.Request, sessionName)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	return sess.Save(c.Request, c.Writer)
}

// resolve finds the user for this request, or nil.
func (a *Auth) resolve(c *gin.Context) *models.User {
	ctx := c.Request.Context()

	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		claims, err := ParseJWT(strings.TrimPrefix(header, "Bearer "), a.jwtSecret)
		if err != nil {
			return nil
		}
		user, err := a.users.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return nil
		}
		return user
	}

	sess, err := a.store.Get(c.Request, sessionName)
	if err != nil {
		return nil
	}
	id, ok := sess.Values[sessionUserKey].(string)
	if !ok || id == "" {
		return nil
	}
	user, err := a.users.GetUserByID(ctx, id)
	if err != nil {
		logging.Debug("session points at a missing user", "user_id", id, "error", err)
		return nil
	}
	return user
}

// OptionalUser sets the user in the context when the request is
// authenticated and always continues.
func (a *Auth) OptionalUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := a.resolve(c); user != nil {
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// RequireUser rejects unauthenticated requests with 401.
func (a *Auth) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := a.resolve(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "unauthorized",
				Message: "Please log in to continue",
				Code:    http.StatusUnauthorized,
			})
			c.Abort()
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// GetUser retrieves the authenticated user from the request context.
func GetUser(c *gin.Context) *models.User {
	val, exists := c.Get(userContextKey)
	if !exists {
		return nil
	}
	user, ok := val.(*models.User)
	if !ok {
		return nil
	}
	return user
}
