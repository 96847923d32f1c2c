// admin.go handles credit administration. Every route except AdminTest
// sits behind middleware.AdminAuth.
package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
)

// AddCredits grants earned credits to one user or to everyone.
// POST /admin/add_credits
func (h *Handler) AddCredits(c *gin.Context) {
	var req models.AddCreditsRequest
	// The admin middleware already read the body; bind from its cache.
	if err := c.ShouldBindBodyWithJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "Invalid JSON body")
		return
	}
	if req.Credits <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_credits", "Credits must be a positive number")
		return
	}

	ctx := c.Request.Context()
	if req.AddToAll {
		changes, err := h.Ledger.GrantAll(ctx, req.Credits)
		if err != nil {
			logging.Error("❌ Failed to grant credits to all users", "error", err)
			respondError(c, http.StatusInternalServerError, "database_error", "Failed to add credits")
			return
		}
		logging.Info("💳 Admin granted credits to all users", "credits", req.Credits, "users", len(changes))
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"message":       fmt.Sprintf("Added %d credits to %d users", req.Credits, len(changes)),
			"updated_users": changes,
		})
		return
	}

	if req.Email == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "Provide an email or set add_to_all")
		return
	}

	change, err := h.Ledger.Grant(ctx, req.Email, req.Credits)
	switch {
	case err == nil:
	case errors.Is(err, database.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "user_not_found", "User not found")
		return
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondError(c, http.StatusBadRequest, "invalid_credits", err.Error())
		return
	default:
		logging.Error("❌ Failed to grant credits", "email", req.Email, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to add credits")
		return
	}

	logging.Info("💳 Admin granted credits", "email", change.Email, "credits", req.Credits)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Added %d credits to %s", req.Credits, change.Email),
		"user":    change,
	})
}

// CheckCredits reports one user's balance.
// POST /admin/check_credits
func (h *Handler) CheckCredits(c *gin.Context) {
	var req models.CheckCreditsRequest
	if err := c.ShouldBindBodyWithJSON(&req); err != nil || req.Email == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "Email is required")
		return
	}

	ctx := c.Request.Context()
	user, err := h.Accounts.Lookup(ctx, req.Email)
	if errors.Is(err, database.ErrUserNotFound) {
		respondError(c, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	if err == nil {
		user, err = h.Ledger.Balance(ctx, user.ID)
	}
	if err != nil {
		logging.Error("❌ Failed to check credits", "email", req.Email, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to check credits")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":             user.Email,
		"total_credits":     user.TotalCredits,
		"used_credits":      user.UsedCredits,
		"daily_credits":     user.DailyCredits,
		"available_credits": user.AvailableCredits(),
		"created_at":        user.CreatedAt,
	})
}

// AdminTest is an unauthenticated liveness check used by deploys.
// GET /admin/test
func (h *Handler) AdminTest(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Admin routes are reachable"})
}
