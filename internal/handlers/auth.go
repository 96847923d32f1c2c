// auth.go handles signup, login, logout and magic sign-in links.
package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/accounts"
	"github.com/jerin288/jdt-tool-web/internal/services/mailer"
)

// Signup creates a new account and logs it in.
// POST /auth/signup
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	user, err := h.Accounts.Signup(c.Request.Context(), req.Email, req.Password, req.ReferralCode)
	switch {
	case err == nil:
	case errors.Is(err, accounts.ErrInvalidEmail):
		respondError(c, http.StatusBadRequest, "invalid_email", "Please enter a valid email address")
		return
	case errors.Is(err, accounts.ErrWeakPassword):
		respondError(c, http.StatusBadRequest, "weak_password", err.Error())
		return
	case errors.Is(err, database.ErrEmailTaken):
		respondError(c, http.StatusConflict, "email_taken", "An account with this email already exists")
		return
	default:
		logging.Error("❌ Signup failed", "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to create account")
		return
	}

	h.startSession(c, user, http.StatusCreated)
}

// Login checks credentials and starts a session.
// POST /auth/login
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email and password are required")
		return
	}

	user, err := h.Accounts.Authenticate(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, accounts.ErrInvalidCredentials) {
		respondError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if err != nil {
		logging.Error("❌ Login failed", "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Login failed")
		return
	}

	h.startSession(c, user, http.StatusOK)
}

// startSession sets the session cookie and answers with a Bearer token
// for API clients.
func (h *Handler) startSession(c *gin.Context, user *models.User, status int) {
	if err := h.Auth.Login(c, user); err != nil {
		logging.Error("❌ Failed to save session", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to start session")
		return
	}

	token, err := middleware.GenerateJWT(user, h.Auth.JWTSecret())
	if err != nil {
		logging.Error("❌ Failed to sign token", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "server_error", "Failed to start session")
		return
	}

	c.JSON(status, models.AuthResponse{Success: true, Token: token, Email: user.Email})
}

// Logout clears the session.
// POST /auth/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c); err != nil {
		logging.Warn("failed to clear session", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequestMagicLink emails a sign-in link when the address has an account.
// It answers the same way either way so it never reveals which emails are registered.
// POST /auth/magic-link
func (h *Handler) RequestMagicLink(c *gin.Context) {
	var req models.MagicLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email is required")
		return
	}

	ok := gin.H{"success": true, "message": "If an account exists for that email, a sign-in link is on its way."}

	user, err := h.Accounts.Lookup(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, database.ErrUserNotFound) {
			logging.Error("❌ Magic link lookup failed", "error", err)
		}
		c.JSON(http.StatusOK, ok)
		return
	}

	token, err := middleware.GenerateMagicLinkToken(user, h.Auth.JWTSecret())
	if err != nil {
		logging.Error("❌ Failed to sign magic link", "user_id", user.ID, "error", err)
		c.JSON(http.StatusOK, ok)
		return
	}

	link := strings.TrimRight(h.Settings.BaseURL, "/") + "/auth/magic/" + url.PathEscape(token)
	h.Mailer.Deliver(mailer.MagicLinkMessage(user.Email, link, middleware.MagicLinkTokenTTL))
	c.JSON(http.StatusOK, ok)
}

// MagicLogin signs in from an emailed link and sends the browser home.
// GET /auth/magic/:token
func (h *Handler) MagicLogin(c *gin.Context) {
	claims, err := middleware.ParseMagicLinkToken(c.Param("token"), h.Auth.JWTSecret())
	if err != nil {
		c.Redirect(http.StatusFound, "/?login=expired")
		return
	}

	user, err := h.Accounts.LoginByEmail(c.Request.Context(), claims.Email)
	if err != nil || user.ID != claims.UserID {
		c.Redirect(http.StatusFound, "/?login=expired")
		return
	}

	if err := h.Auth.Login(c, user); err != nil {
		logging.Error("❌ Failed to save session", "user_id", user.ID, "error", err)
		c.Redirect(http.StatusFound, "/?login=failed")
		return
	}
	c.Redirect(http.StatusFound, "/")
}
