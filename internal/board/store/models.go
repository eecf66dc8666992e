package store

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a job posting.
//
// The only legal transition is DRAFT -> ACTIVE, applied when a payment
// confirmation correlates back to the posting. Publishing an already-ACTIVE
// posting is a no-op, never an error, so at-least-once webhook delivery is
// safe to replay.
type JobStatus string

const (
	JobStatusDraft  JobStatus = "DRAFT"
	JobStatusActive JobStatus = "ACTIVE"
)

// User is a registered account able to post jobs.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	APIToken  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Company is the hiring entity a user posts jobs under. At most one per user.
type Company struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// JobPosting is a job advertisement. It is created DRAFT and becomes ACTIVE
// (publicly listed) only once payment is confirmed.
type JobPosting struct {
	ID              string    `json:"id"`
	CompanyID       string    `json:"company_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	EmploymentType  string    `json:"employment_type"`
	Location        string    `json:"location"`
	SalaryFrom      int64     `json:"salary_from"`
	SalaryTo        int64     `json:"salary_to"`
	Benefits        []string  `json:"benefits"`
	ListingDuration int       `json:"listing_duration"`
	Status          JobStatus `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BillingIdentity maps a local user to a Stripe customer. The mapping is
// created lazily on first checkout and never reassigned.
type BillingIdentity struct {
	UserID           string    `json:"user_id"`
	StripeCustomerID string    `json:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewID returns a fresh opaque identifier for store entities.
func NewID() string {
	return uuid.NewString()
}

// GenerateAPIToken returns a bearer token of the form "jd_" followed by
// 32 hex characters (128 bits of entropy).
func GenerateAPIToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api token: %w", err)
	}
	return "jd_" + hex.EncodeToString(b), nil
}
