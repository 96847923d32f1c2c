// Package accounts implements signup, login and referral bookkeeping.
package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
	"github.com/jerin288/jdt-tool-web/internal/services/ledger"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

const (
	referralCodeLength   = 8
	referralCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service manages user accounts.
type Service struct {
	db     *database.DB
	ledger *ledger.Ledger
}

// New creates an account service.
func New(db *database.DB, l *ledger.Ledger) *Service {
	return &Service{db: db, ledger: l}
}

// NormalizeEmail lower-cases and trims an address and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Signup creates an account with the signup bonus. A known referral code
// credits its owner in the same transaction; an unknown one is ignored.
func (s *Service) Signup(ctx context.Context, email, password, referralCode string) (*models.User, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	referralCode = strings.ToUpper(strings.TrimSpace(referralCode))
	policy := s.ledger.Policy()

	var user *models.User
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var referrer *models.User
		if referralCode != "" {
			referrer, err = tx.GetUserByReferralCode(ctx, referralCode)
			if errors.Is(err, database.ErrUserNotFound) {
				logging.Warn("unknown referral code at signup", "code", referralCode, "email", email)
				referrer = nil
			} else if err != nil {
				return err
			}
		}

		code, err := uniqueReferralCode(ctx, tx)
		if err != nil {
			return err
		}

		user = &models.User{
			Email:        email,
			PasswordHash: string(hash),
			ReferralCode: code,
		}
		if referrer != nil {
			user.ReferredByCode = &referrer.ReferralCode
		}
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}

		if policy.SignupBonus > 0 {
			after, err := s.ledger.GrantInTx(ctx, tx, user.ID, policy.SignupBonus, models.TxSignup, "Welcome bonus")
			if err != nil {
				return err
			}
			user = after
		}

		if referrer == nil {
			return nil
		}
		credited := policy.ReferralBonus > 0
		if credited {
			if _, err := s.ledger.GrantInTx(ctx, tx, referrer.ID, policy.ReferralBonus, models.TxReferral,
				"Referral bonus: "+email); err != nil {
				return err
			}
		}
		return tx.InsertReferralLog(ctx, &models.ReferralLog{
			ReferrerID:   referrer.ID,
			RefereeEmail: email,
			Credited:     credited,
		})
	})
	if err != nil {
		return nil, err
	}

	logging.Info("👤 User signed up", "user_id", user.ID, "referred", user.ReferredByCode != nil)
	return user, nil
}

// Authenticate checks a password. Unknown emails and wrong passwords give
// the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.db.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	s.touch(ctx, user)
	return user, nil
}

// LoginByEmail is used by magic links, whose token already proves the
// caller owns the address.
func (s *Service) LoginByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	s.touch(ctx, user)
	return user, nil
}

func (s *Service) touch(ctx context.Context, user *models.User) {
	if err := s.db.TouchLogin(ctx, user.ID); err != nil {
		logging.Warn("failed to record login", "user_id", user.ID, "error", err)
	}
}

// Lookup returns a user by email.
func (s *Service) Lookup(ctx context.Context, email string) (*models.User, error) {
	return s.db.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Profile gathers the account summary shown on the profile page.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	user, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	conversions, err := s.db.CountConversions(ctx, userID)
	if err != nil {
		return nil, err
	}
	refs, err := s.db.ListReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}
	referralCredits, err := s.db.SumTransactions(ctx, userID, models.TxReferral)
	if err != nil {
		return nil, err
	}

	return &models.Profile{
		Email:            user.Email,
		ReferralCode:     user.ReferralCode,
		CreatedAt:        user.CreatedAt,
		TotalCredits:     user.TotalCredits,
		UsedCredits:      user.UsedCredits,
		AvailableCredits: user.AvailableCredits(),
		DailyCredits:     user.DailyCredits,
		TotalConversions: conversions,
		TotalReferrals:   len(refs),
		ReferralCredits:  referralCredits,
		ReferredBy:       user.ReferredByCode,
	}, nil
}

// ReferralStats lists the users a referrer brought in.
func (s *Service) ReferralStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	refs, err := s.db.ListReferrals(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.ReferralStats{TotalReferrals: len(refs), Referrals: refs}, nil
}

// uniqueReferralCode draws codes until one is unused.
func uniqueReferralCode(ctx context.Context, tx *database.Tx) (string, error) {
	for attempt := 0; attempt < 10; attempt++ {
		code, err := NewReferralCode()
		if err != nil {
			return "", err
		}
		taken, err := tx.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

// NewReferralCode returns 8 random characters from A-Z and 0-9.
func NewReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	// 256 is not a multiple of 36; the small bias is irrelevant for codes.
	for i, b := range buf {
		buf[i] = referralCodeAlphabet[int(b)%len(referralCodeAlphabet)]
	}
	return string(buf), nil
}
