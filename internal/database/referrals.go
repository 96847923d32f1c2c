// referrals.go handles referral bookkeeping.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// InsertReferralLog records that a referee signed up with a referrer's code.
func (s *Queries) InsertReferralLog(ctx context.Context, r *models.ReferralLog) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO referral_logs (id, referrer_id, referee_email, credited, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.ReferrerID, r.RefereeEmail, r.Credited, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record referral: %w", err)
	}
	return nil
}

// ListReferrals returns the users a referrer brought in, newest first.
func (s *Queries) ListReferrals(ctx context.Context, referrerID string) ([]models.ReferralLog, error) {
	refs := []models.ReferralLog{}
	err := s.sel(ctx, &refs, `
		SELECT * FROM referral_logs WHERE referrer_id = ? ORDER BY created_at DESC`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referrals: %w", err)
	}
	return refs, nil
}
