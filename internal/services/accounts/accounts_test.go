package accounts

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/database/dbtest"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
)

func newService(t *testing.T) (*Service, *database.DB) {
	t.Helper()
	db := dbtest.New(t)
	l := ledger.New(db, ledger.Policy{SignupBonus: 20, ReferralBonus: 10, DailyAllowance: 3})
	return New(db, l), db
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "  Alice@Example.COM ", want: "alice@example.com"},
		{in: "bob@mail.example.org", want: "bob@mail.example.org"},
		{in: "no-at-sign", wantErr: true},
		{in: "user@localhost", wantErr: true},
		{in: "Name <x@example.com>", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeEmail(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidEmail)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewReferralCode(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z0-9]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code, err := NewReferralCode()
		require.NoError(t, err)
		assert.Regexp(t, re, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 95)
}

func TestSignup(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "New@Example.com", "password123", "")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, 20, u.TotalCredits)
	assert.Len(t, u.ReferralCode, 8)
	assert.NotEqual(t, "password123", u.PasswordHash)

	_, err = svc.Signup(ctx, "new@example.com", "password123", "")
	assert.ErrorIs(t, err, database.ErrEmailTaken)

	_, err = svc.Signup(ctx, "short@example.com", "short", "")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Signup(ctx, "bad-email", "password123", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSignup_Referral(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	referrer, err := svc.Signup(ctx, "ref@example.com", "password123", "")
	require.NoError(t, err)

	referee, err := svc.Signup(ctx, "friend@example.com", "password123", " "+strings.ToLower(referrer.ReferralCode))
	require.NoError(t, err)
	require.NotNil(t, referee.ReferredByCode)
	assert.Equal(t, referrer.ReferralCode, *referee.ReferredByCode)

	got, err := db.GetUserByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.TotalCredits)

	stats, err := svc.ReferralStats(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalReferrals)
	assert.Equal(t, "friend@example.com", stats.Referrals[0].RefereeEmail)
	assert.True(t, stats.Referrals[0].Credited)

	profile, err := svc.Profile(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, profile.ReferralCredits)
	assert.Equal(t, 1, profile.TotalReferrals)
	assert.Equal(t, 33, profile.AvailableCredits, "20 signup + 10 referral + 3 daily")
	assert.Nil(t, profile.ReferredBy)

	// An unknown code does not block signup.
	stranger, err := svc.Signup(ctx, "stranger@example.com", "password123", "NOPE0000")
	require.NoError(t, err)
	assert.Nil(t, stranger.ReferredByCode)
}

func TestAuthenticate(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	_, err := svc.Signup(ctx, "login@example.com", "password123", "")
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, " LOGIN@example.com", "password123")
	require.NoError(t, err)

	got, err := db.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLoginAt)

	_, err = svc.Authenticate(ctx, "login@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.LoginByEmail(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, database.ErrUserNotFound)
}

func TestSignup_LedgerRows(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "rows@example.com", "password123", "")
	require.NoError(t, err)

	sum, err := db.SumTransactions(ctx, u.ID, models.TxSignup)
	require.NoError(t, err)
	assert.Equal(t, 20, sum)
}
