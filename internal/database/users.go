// users.go handles user-related database operations.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// InsertUser creates a user. ID and CreatedAt are filled in when empty.
// A duplicate email returns ErrEmailTaken.
func (s *Queries) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}

	_, err := s.exec(ctx, `
		INSERT INTO users (id, email, password_hash, referral_code, referred_by_code,
			total_credits, used_credits, daily_credits, last_daily_reset, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.ReferralCode, u.ReferredByCode,
		u.TotalCredits, u.UsedCredits, u.DailyCredits, u.LastDailyReset, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "email") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by (already normalised) email address.
func (s *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `SELECT * FROM users WHERE email = ?`, email)
}

// GetUserByID retrieves a user by ID.
func (s *Queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `SELECT * FROM users WHERE id = ?`, id)
}

// GetUserByReferralCode retrieves the owner of a referral code.
func (s *Queries) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	return s.getUser(ctx, `SELECT * FROM users WHERE referral_code = ?`, strings.ToUpper(code))
}

func (s *Queries) getUser(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var u models.User
	err := s.get(ctx, &u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// ReferralCodeExists reports whether a code is already assigned.
func (s *Queries) ReferralCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM users WHERE referral_code = ?`, code); err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchLogin records a successful login.
func (s *Queries) TouchLogin(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `UPDATE users SET last_login_at = ? WHERE id = ?`, now(), id)
	return err
}

// ListUsers returns every user, oldest first.
func (s *Queries) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.sel(ctx, &users, `SELECT * FROM users ORDER BY created_at, email`); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// --- Balance updates ---
//
// Every update below is a single conditional statement. The WHERE clause
// carries the guard, so two concurrent callers can never both pass it for
// the last remaining credit.

// RefreshDaily resets the daily allowance if it was last reset before today.
// It reports whether a reset happened.
func (s *Queries) RefreshDaily(ctx context.Context, userID, today string, allowance int) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE users SET daily_credits = ?, last_daily_reset = ?
		WHERE id = ? AND last_daily_reset <> ?`,
		allowance, today, userID, today)
	if err != nil {
		return false, fmt.Errorf("failed to refresh daily credits: %w", err)
	}
	return n == 1, nil
}

// TakeDailyCredit consumes one daily credit if any remain.
func (s *Queries) TakeDailyCredit(ctx context.Context, userID string) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE users SET daily_credits = daily_credits - 1
		WHERE id = ? AND daily_credits > 0`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to take daily credit: %w", err)
	}
	return n == 1, nil
}

// TakeEarnedCredit consumes one earned credit if any remain.
func (s *Queries) TakeEarnedCredit(ctx context.Context, userID string) (bool, error) {
	n, err := s.exec(ctx, `
		UPDATE users SET used_credits = used_credits + 1
		WHERE id = ? AND total_credits - used_credits > 0`, userID)
	if err != nil {
		return false, fmt.Errorf("failed to take earned credit: %w", err)
	}
	return n == 1, nil
}

// ReturnCredit gives one credit back to the pool it was taken from.
func (s *Queries) ReturnCredit(ctx context.Context, userID string, source models.CreditSource) error {
	query := `UPDATE users SET used_credits = used_credits - 1 WHERE id = ? AND used_credits > 0`
	if source == models.SourceDaily {
		query = `UPDATE users SET daily_credits = daily_credits + 1 WHERE id = ?`
	}
	n, err := s.exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to return credit: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddCredits raises a user's earned total by amount.
func (s *Queries) AddCredits(ctx context.Context, userID string, amount int) error {
	n, err := s.exec(ctx, `UPDATE users SET total_credits = total_credits + ? WHERE id = ?`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to add credits: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
