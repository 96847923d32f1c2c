// conversions.go persists conversion records. A conversion's id is the task id.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jerin288/jdt-tool-web/internal/models"
)

// InsertConversion records a newly charged upload.
func (s *Queries) InsertConversion(ctx context.Context, c *models.Conversion) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now()
	}
	if c.Status == "" {
		c.Status = models.StatusStarted
	}
	_, err := s.exec(ctx, `
		INSERT INTO conversions (id, user_id, filename, status, output_format, credit_source, refunded, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Filename, c.Status, c.OutputFormat, c.CreditSource, false, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create conversion: %w", err)
	}
	return nil
}

// GetConversion retrieves a conversion by task id.
func (s *Queries) GetConversion(ctx context.Context, id string) (*models.Conversion, error) {
	return s.getConversion(ctx, `SELECT * FROM conversions WHERE id = ?`, id)
}

// GetConversionByOutputFile finds the conversion that produced a file.
func (s *Queries) GetConversionByOutputFile(ctx context.Context, file string) (*models.Conversion, error) {
	return s.getConversion(ctx, `SELECT * FROM conversions WHERE output_file = ?`, file)
}

func (s *Queries) getConversion(ctx context.Context, query string, arg interface{}) (*models.Conversion, error) {
	var c models.Conversion
	err := s.get(ctx, &c, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConversionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversion: %w", err)
	}
	return &c, nil
}

// MarkProcessing moves a started conversion to processing.
func (s *Queries) MarkProcessing(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `UPDATE conversions SET status = ? WHERE id = ? AND status = ?`,
		models.StatusProcessing, id, models.StatusStarted)
	return err
}

// CompleteConversion stores a successful result. Only an unfinished,
// unrefunded conversion can complete; otherwise ErrConversionClosed.
func (s *Queries) CompleteConversion(ctx context.Context, id, outputFile string, tables, texts int) error {
	n, err := s.exec(ctx, `
		UPDATE conversions
		SET status = ?, output_file = ?, table_count = ?, text_count = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?) AND refunded = ?`,
		models.StatusCompleted, outputFile, tables, texts, now(),
		id, models.StatusStarted, models.StatusProcessing, false)
	if err != nil {
		return fmt.Errorf("failed to complete conversion: %w", err)
	}
	if n == 0 {
		return s.notUpdated(ctx, id)
	}
	return nil
}

// FailConversion stores an error outcome. A conversion that already
// finished keeps its outcome and ErrConversionClosed is returned.
func (s *Queries) FailConversion(ctx context.Context, id, message string) error {
	n, err := s.exec(ctx, `
		UPDATE conversions SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status IN (?, ?)`,
		models.StatusError, message, now(),
		id, models.StatusStarted, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail conversion: %w", err)
	}
	if n == 0 {
		return s.notUpdated(ctx, id)
	}
	return nil
}

// notUpdated tells a missing conversion apart from a finished one.
func (s *Queries) notUpdated(ctx context.Context, id string) error {
	if _, err := s.GetConversion(ctx, id); err != nil {
		return err
	}
	return ErrConversionClosed
}

// MarkRefunded flips the refunded flag. It reports false when the
// conversion was already refunded, which makes refunds idempotent.
func (s *Queries) MarkRefunded(ctx context.Context, id string) (bool, error) {
	n, err := s.exec(ctx, `UPDATE conversions SET refunded = ? WHERE id = ? AND refunded = ?`, true, id, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark refund: %w", err)
	}
	return n == 1, nil
}

// ListConversions returns a user's latest conversions, oldest first.
func (s *Queries) ListConversions(ctx context.Context, userID string, limit int) ([]models.Conversion, error) {
	convs := []models.Conversion{}
	err := s.sel(ctx, &convs, `
		SELECT * FROM conversions WHERE user_id = ?
		ORDER BY created_at DESC, id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversions: %w", err)
	}
	for i, j := 0, len(convs)-1; i < j; i, j = i+1, j-1 {
		convs[i], convs[j] = convs[j], convs[i]
	}
	return convs, nil
}

// CountConversions counts every conversion a user has made.
func (s *Queries) CountConversions(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.get(ctx, &n, `SELECT COUNT(*) FROM conversions WHERE user_id = ?`, userID); err != nil {
		return 0, fmt.Errorf("failed to count conversions: %w", err)
	}
	return n, nil
}

// ListUnfinished returns conversions still started or processing that were
// created before the cutoff. After a restart these have no worker.
func (s *Queries) ListUnfinished(ctx context.Context, before time.Time) ([]models.Conversion, error) {
	convs := []models.Conversion{}
	err := s.sel(ctx, &convs, `
		SELECT * FROM conversions
		WHERE status IN (?, ?) AND created_at < ?
		ORDER BY created_at`,
		models.StatusStarted, models.StatusProcessing, before.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished conversions: %w", err)
	}
	return convs, nil
}
