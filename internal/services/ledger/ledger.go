// Package ledger owns every change to a user's credit balance.
//
// A balance has two pools: the daily allowance, refilled on the first touch
// of each UTC day, and earned credits (total minus used). Conversions draw
// from the daily pool first. Every change happens inside one database
// transaction together with its append-only ledger row, so the balance and
// its history cannot drift apart.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jerin288/jdt-tool-web/internal/database"
	"github.com/jerin288/jdt-tool-web/internal/logging"
	"github.com/jerin288/jdt-tool-web/internal/models"
)

var (
	// ErrInsufficientCredits means both pools are empty.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvalidAmount rejects grants of zero or fewer credits.
	ErrInvalidAmount = errors.New("credit amount must be positive")
)

// Policy holds the credit amounts handed out by the system.
type Policy struct {
	SignupBonus    int
	ReferralBonus  int
	DailyAllowance int
}

// Ledger applies credit changes against the database.
type Ledger struct {
	db     *database.DB
	policy Policy
	now    func() time.Time
}

// New creates a Ledger.
func New(db *database.DB, policy Policy) *Ledger {
	return &Ledger{db: db, policy: policy, now: time.Now}
}

// WithClock replaces the time source. Tests use it to cross midnight.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Policy returns the configured amounts.
func (l *Ledger) Policy() Policy {
	return l.policy
}

func (l *Ledger) today() string {
	return l.now().UTC().Format("2006-01-02")
}

// Balance refreshes the daily allowance if due and returns the user.
func (l *Ledger) Balance(ctx context.Context, userID string) (*models.User, error) {
	var user *models.User
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		if err := l.refreshDaily(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		user, err = tx.GetUserByID(ctx, userID)
		return err
	})
	return user, err
}

func (l *Ledger) refreshDaily(ctx context.Context, tx *database.Tx, userID string) error {
	reset, err := tx.RefreshDaily(ctx, userID, l.today(), l.policy.DailyAllowance)
	if err != nil {
		return err
	}
	if !reset || l.policy.DailyAllowance == 0 {
		return nil
	}
	_, err = l.record(ctx, tx, userID, l.policy.DailyAllowance, models.TxDaily, "Daily free credits")
	return err
}

// record appends a ledger row carrying the balance after the change.
func (l *Ledger) record(ctx context.Context, tx *database.Tx, userID string, amount int, typ models.TransactionType, desc string) (*models.User, error) {
	user, err := tx.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = tx.InsertTransaction(ctx, &models.CreditTransaction{
		UserID:       userID,
		Amount:       amount,
		Type:         typ,
		Description:  desc,
		BalanceAfter: user.AvailableCredits(),
		CreatedAt:    l.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Charge takes one credit for a conversion and inserts the conversion row
// in the same transaction. conv.ID, Filename and OutputFormat must be set.
// It returns the user's balance after the charge.
func (l *Ledger) Charge(ctx context.Context, userID string, conv *models.Conversion) (*models.User, error) {
	var user *models.User
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		if err := l.refreshDaily(ctx, tx, userID); err != nil {
			return err
		}

		source := models.SourceDaily
		ok, err := tx.TakeDailyCredit(ctx, userID)
		if err != nil {
			return err
		}
		if !ok {
			source = models.SourceEarned
			if ok, err = tx.TakeEarnedCredit(ctx, userID); err != nil {
				return err
			}
		}
		if !ok {
			return ErrInsufficientCredits
		}

		conv.UserID = userID
		conv.CreditSource = source
		conv.CreatedAt = l.now().UTC()
		if err := tx.InsertConversion(ctx, conv); err != nil {
			return err
		}

		user, err = l.record(ctx, tx, userID, -1, models.TxConversion, "PDF conversion: "+conv.Filename)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Refund returns a conversion's credit. It is idempotent: only the first
// call for a conversion moves credits, later calls report false.
//
// A daily credit is returned to the daily pool only on the day it was
// spent. After the allowance has been reset it comes back as an earned
// credit instead.
func (l *Ledger) Refund(ctx context.Context, conversionID, reason string) (bool, error) {
	refunded := false
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		conv, err := tx.GetConversion(ctx, conversionID)
		if err != nil {
			return err
		}
		ok, err := tx.MarkRefunded(ctx, conversionID)
		if err != nil || !ok {
			return err
		}

		sameDay := conv.CreatedAt.UTC().Format("2006-01-02") == l.today()
		if conv.CreditSource == models.SourceDaily && sameDay {
			err = tx.ReturnCredit(ctx, conv.UserID, models.SourceDaily)
		} else if conv.CreditSource == models.SourceDaily {
			err = tx.AddCredits(ctx, conv.UserID, 1)
		} else {
			err = tx.ReturnCredit(ctx, conv.UserID, models.SourceEarned)
		}
		if err != nil {
			return err
		}

		desc := "Refund: " + conv.Filename
		if reason != "" {
			desc += " (" + reason + ")"
		}
		if _, err := l.record(ctx, tx, conv.UserID, 1, models.TxRefund, truncate(desc, 255)); err != nil {
			return err
		}
		refunded = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("refund %s: %w", conversionID, err)
	}
	if refunded {
		logging.Info("💳 Credit refunded", "task_id", conversionID, "reason", reason)
	}
	return refunded, nil
}

// GrantInTx adds earned credits inside an existing transaction. Signup
// and referral bonuses use it so they commit together with the account.
func (l *Ledger) GrantInTx(ctx context.Context, tx *database.Tx, userID string, amount int, typ models.TransactionType, desc string) (*models.User, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := tx.AddCredits(ctx, userID, amount); err != nil {
		return nil, err
	}
	return l.record(ctx, tx, userID, amount, typ, desc)
}

// Grant adds admin credits to one user and reports the change.
func (l *Ledger) Grant(ctx context.Context, email string, amount int) (*models.CreditChange, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	var change *models.CreditChange
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		user, err := tx.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
		if err != nil {
			return err
		}
		change, err = l.grantUser(ctx, tx, user, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return change, nil
}

// GrantAll adds admin credits to every user in one transaction.
func (l *Ledger) GrantAll(ctx context.Context, amount int) ([]models.CreditChange, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	changes := []models.CreditChange{}
	err := l.db.InTx(ctx, func(tx *database.Tx) error {
		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		for i := range users {
			change, err := l.grantUser(ctx, tx, &users[i], amount)
			if err != nil {
				return err
			}
			changes = append(changes, *change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

func (l *Ledger) grantUser(ctx context.Context, tx *database.Tx, user *models.User, amount int) (*models.CreditChange, error) {
	after, err := l.GrantInTx(ctx, tx, user.ID, amount, models.TxAdmin,
		fmt.Sprintf("Admin added %d credits", amount))
	if err != nil {
		return nil, err
	}
	return &models.CreditChange{
		Email:     user.Email,
		OldTotal:  user.TotalCredits,
		NewTotal:  after.TotalCredits,
		Available: after.AvailableCredits(),
	}, nil
}

// History returns a user's most recent ledger rows, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return l.db.ListTransactions(ctx, userID, limit)
}

// truncate caps s at n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
