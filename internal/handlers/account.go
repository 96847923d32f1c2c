// account.go serves the signed-in user's balance, referrals and profile.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/middleware"
	"github.com/jerin288/jdt-tool-web/internal/models"
)

// creditHistoryLimit caps GET /api/credit-history.
const creditHistoryLimit = 50

// UserStatus tells the front end whether someone is signed in.
// GET /api/user-status
func (h *Handler) UserStatus(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusOK, models.UserStatus{LoggedIn: false})
		return
	}

	bal, err := h.Ledger.Balance(c.Request.Context(), user.ID)
	if err != nil {
		logging.Error("❌ Failed to load balance", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load account")
		return
	}

	c.JSON(http.StatusOK, models.UserStatus{
		LoggedIn:         true,
		Email:            bal.Email,
		ReferralCode:     bal.ReferralCode,
		AvailableCredits: bal.AvailableCredits(),
	})
}

// Credits returns the current balance. Reading it refreshes the daily
// allowance when a new day has started.
// GET /api/credits
func (h *Handler) Credits(c *gin.Context) {
	user := middleware.GetUser(c)
	bal, err := h.Ledger.Balance(c.Request.Context(), user.ID)
	if err != nil {
		logging.Error("❌ Failed to load balance", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load credits")
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, models.CreditsResponse{
		Available:    bal.AvailableCredits(),
		TotalCredits: bal.TotalCredits,
		UsedCredits:  bal.UsedCredits,
		DailyCredits: bal.DailyCredits,
		TotalEarned:  bal.EarnedCredits(),
		ReferralCode: bal.ReferralCode,
	})
}

// ReferralStats lists who signed up with the user's code.
// GET /api/referral-stats
func (h *Handler) ReferralStats(c *gin.Context) {
	user := middleware.GetUser(c)
	stats, err := h.Accounts.ReferralStats(c.Request.Context(), user.ID)
	if err != nil {
		logging.Error("❌ Failed to load referrals", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load referral stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Profile returns the account summary.
// GET /api/profile
func (h *Handler) Profile(c *gin.Context) {
	user := middleware.GetUser(c)
	profile, err := h.Accounts.Profile(c.Request.Context(), user.ID)
	if err != nil {
		logging.Error("❌ Failed to load profile", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// CreditHistory returns the latest ledger rows, newest first.
// GET /api/credit-history
func (h *Handler) CreditHistory(c *gin.Context) {
	user := middleware.GetUser(c)
	history, err := h.Ledger.History(c.Request.Context(), user.ID, creditHistoryLimit)
	if err != nil {
		logging.Error("❌ Failed to load credit history", "user_id", user.ID, "error", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load credit history")
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}
