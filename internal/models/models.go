// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// The database package handles persistence; these are just data containers.
//
// JSON tags (e.g., `json:"id"`) control how struct fields are serialized
// to/from JSON. The `db` tags work with sqlx for database column mapping.
package models

import (
	"time"
)

// ConversionStatus represents the processing state of a conversion.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
type ConversionStatus string

const (
	StatusStarted    ConversionStatus = "started"
	StatusProcessing ConversionStatus = "processing"
	StatusCompleted  ConversionStatus = "completed"
	StatusError      ConversionStatus = "error"
)

// Terminal reports whether no further progress updates apply.
func (s ConversionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// TransactionType classifies a credit ledger row.
type TransactionType string

const (
	TxSignup     TransactionType = "signup"
	TxReferral   TransactionType = "referral"
	TxPurchase   TransactionType = "purchase"
	TxDaily      TransactionType = "daily"
	TxConversion TransactionType = "conversion"
	TxRefund     TransactionType = "refund"
	TxAdmin      TransactionType = "admin"
)

// CreditSource records which pool paid for a conversion.
type CreditSource string

const (
	SourceDaily  CreditSource = "daily"
	SourceEarned CreditSource = "earned"
)

// User is an account holder.
type User struct {
	ID             string     `json:"id" db:"id"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"` // "-" means never serialize to JSON
	ReferralCode   string     `json:"referral_code" db:"referral_code"`
	ReferredByCode *string    `json:"referred_by,omitempty" db:"referred_by_code"` // Pointer = nullable
	TotalCredits   int        `json:"total_credits" db:"total_credits"`
	UsedCredits    int        `json:"used_credits" db:"used_credits"`
	DailyCredits   int        `json:"daily_credits" db:"daily_credits"`
	LastDailyReset string     `json:"-" db:"last_daily_reset"` // UTC date, YYYY-MM-DD
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}

// EarnedCredits is what remains of granted credits.
func (u *User) EarnedCredits() int {
	return u.TotalCredits - u.UsedCredits
}

// AvailableCredits is the balance a conversion can draw from.
func (u *User) AvailableCredits() int {
	return u.DailyCredits + u.EarnedCredits()
}

// CreditTransaction is one append-only ledger row.
type CreditTransaction struct {
	ID           string          `json:"-" db:"id"`
	UserID       string          `json:"-" db:"user_id"`
	Amount       int             `json:"amount" db:"amount"`
	Type         TransactionType `json:"type" db:"transaction_type"`
	Description  string          `json:"description" db:"description"`
	BalanceAfter int             `json:"balance_after" db:"balance_after"`
	CreatedAt    time.Time       `json:"timestamp" db:"created_at"`
}

// ReferralLog records one referee signing up with a referrer's code.
type ReferralLog struct {
	ID           string    `json:"-" db:"id"`
	ReferrerID   string    `json:"-" db:"referrer_id"`
	RefereeEmail string    `json:"email" db:"referee_email"`
	Credited     bool      `json:"credited" db:"credited"`
	CreatedAt    time.Time `json:"signup_date" db:"created_at"`
}

// Conversion is the durable record of one upload. Its ID is the task id.
type Conversion struct {
	ID           string           `json:"task_id" db:"id"`
	UserID       string           `json:"-" db:"user_id"`
	Filename     string           `json:"filename" db:"filename"`
	Status       ConversionStatus `json:"status" db:"status"`
	OutputFile   string           `json:"output_file" db:"output_file"`
	OutputFormat string           `json:"-" db:"output_format"`
	TableCount   int              `json:"table_count" db:"table_count"`
	TextCount    int              `json:"text_count" db:"text_count"`
	ErrorMessage string           `json:"error_message,omitempty" db:"error_message"`
	CreditSource CreditSource     `json:"-" db:"credit_source"`
	Refunded     bool             `json:"-" db:"refunded"`
	CreatedAt    time.Time        `json:"timestamp" db:"created_at"`
	CompletedAt  *time.Time       `json:"-" db:"completed_at"`
}

// PageText is one page of extracted text. Capitalised keys match the
// column names of the Extracted_Text sheet.
type PageText struct {
	Page int    `json:"Page"`
	Text string `json:"Text"`
}

// Preview is what /preview-data returns: either a table slice or text pages.
type Preview struct {
	Columns     []string   `json:"columns,omitempty"`
	Rows        [][]string `json:"rows,omitempty"`
	TotalRows   int        `json:"total_rows,omitempty"`
	TextPreview []PageText `json:"text_preview,omitempty"`
}

// Empty reports whether the preview carries nothing to show.
func (p *Preview) Empty() bool {
	return p == nil || (len(p.Columns) == 0 && len(p.TextPreview) == 0)
}

// Task is the polled progress state of a conversion.
type Task struct {
	ID         string           `json:"task_id"`
	UserID     string           `json:"-"`
	Status     ConversionStatus `json:"status"`
	Progress   int              `json:"progress"`
	Message    string           `json:"message"`
	OutputFile string           `json:"output_file,omitempty"`
	TableCount int              `json:"table_count"`
	TextCount  int              `json:"text_count"`
	Preview    *Preview         `json:"-"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// --- API Request/Response Types ---

// SignupRequest is the body of POST /auth/signup.
// Go Pattern: `binding:"required"` is a gin validation tag. If the field
// is missing from the JSON body, gin returns a 400 error automatically.
type SignupRequest struct {
	Email        string `json:"email" binding:"required"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned after a successful signup or login.
type AuthResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Email   string `json:"email"`
}

// MagicLinkRequest is the body of POST /auth/magic-link.
type MagicLinkRequest struct {
	Email string `json:"email" binding:"required"`
}

// UploadResponse is returned after a file is accepted for conversion.
type UploadResponse struct {
	TaskID           string `json:"task_id"`
	CreditsRemaining int    `json:"credits_remaining"`
}

// HistoryEntry is one row of GET /history.
type HistoryEntry struct {
	TaskID      string           `json:"task_id"`
	Filename    string           `json:"filename"`
	Status      ConversionStatus `json:"status"`
	Timestamp   time.Time        `json:"timestamp"`
	OutputFile  string           `json:"output_file"`
	CanDownload bool             `json:"can_download"`
}

// UserStatus is returned by GET /api/user-status.
type UserStatus struct {
	LoggedIn         bool   `json:"logged_in"`
	Email            string `json:"email,omitempty"`
	ReferralCode     string `json:"referral_code,omitempty"`
	AvailableCredits int    `json:"available_credits"`
}

// CreditsResponse is returned by GET /api/credits.
type CreditsResponse struct {
	Available    int    `json:"available"`
	TotalCredits int    `json:"total_credits"`
	UsedCredits  int    `json:"used_credits"`
	DailyCredits int    `json:"daily_credits"`
	TotalEarned  int    `json:"total_earned"`
	ReferralCode string `json:"referral_code"`
}

// ReferralStats is returned by GET /api/referral-stats.
type ReferralStats struct {
	TotalReferrals int           `json:"total_referrals"`
	Referrals      []ReferralLog `json:"referrals"`
}

// Profile is returned by GET /api/profile.
type Profile struct {
	Email            string    `json:"email"`
	ReferralCode     string    `json:"referral_code"`
	CreatedAt        time.Time `json:"created_at"`
	TotalCredits     int       `json:"total_credits"`
	UsedCredits      int       `json:"used_credits"`
	AvailableCredits int       `json:"available_credits"`
	DailyCredits     int       `json:"daily_credits"`
	TotalConversions int       `json:"total_conversions"`
	TotalReferrals   int       `json:"total_referrals"`
	ReferralCredits  int       `json:"referral_credits"`
	ReferredBy       *string   `json:"referred_by"`
}

// AddCreditsRequest is the body of POST /admin/add_credits.
type AddCreditsRequest struct {
	AdminKey string `json:"admin_key"`
	Email    string `json:"email"`
	AddToAll bool   `json:"add_to_all"`
	Credits  int    `json:"credits"`
}

// CheckCreditsRequest is the body of POST /admin/check_credits.
type CheckCreditsRequest struct {
	AdminKey string `json:"admin_key"`
	Email    string `json:"email"`
}

// CreditChange describes one user's balance before and after a grant.
type CreditChange struct {
	Email     string `json:"email" db:"email"`
	OldTotal  int    `json:"old_total" db:"old_total"`
	NewTotal  int    `json:"new_total" db:"new_total"`
	Available int    `json:"available" db:"available"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Database    string `json:"database"`
	Workers     int    `json:"workers"`
	QueueLength int    `json:"queue_length"`
	TaskStore   string `json:"task_store"`
}

// ErrorResponse is the standard error format for all API errors.
// Consistent error formats make APIs easier to consume.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
