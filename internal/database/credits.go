// credits.go handles the append-only credit ledger.
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// InsertTransaction appends a ledger row.
func (s *Queries) InsertTransaction(ctx context.Context, t *models.CreditTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, transaction_type, description, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Amount, t.Type, t.Description, t.BalanceAfter, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record credit transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a user's most recent ledger rows, newest first.
func (s *Queries) ListTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	txs := []models.CreditTransaction{}
	err := s.sel(ctx, &txs, `
		SELECT * FROM credit_transactions
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list credit transactions: %w", err)
	}
	return txs, nil
}

// SumTransactions totals a user's ledger rows of one type.
func (s *Queries) SumTransactions(ctx context.Context, userID string, typ models.TransactionType) (int, error) {
	var total int
	err := s.get(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM credit_transactions
		WHERE user_id = ? AND transaction_type = ?`, userID, typ)
	if err != nil {
		return 0, fmt.Errorf("failed to sum credit transactions: %w", err)
	}
	return total, nil
}
