package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides CRUD operations for job-board records backed by SQLite.
// It is the single source of truth for whether a posting is publicly live.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the job-board database in dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dbPath := filepath.Join(dir, "jobdeck.db")
	dsn := dbPath + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
			"foreign_keys(ON)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open job-board db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		api_token  TEXT NOT NULL UNIQUE,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS companies (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL UNIQUE REFERENCES users(id),
		name       TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS job_posts (
		id               TEXT PRIMARY KEY,
		company_id       TEXT NOT NULL REFERENCES companies(id),
		title            TEXT NOT NULL,
		description      TEXT NOT NULL,
		employment_type  TEXT NOT NULL,
		location         TEXT NOT NULL,
		salary_from      INTEGER NOT NULL DEFAULT 0,
		salary_to        INTEGER NOT NULL DEFAULT 0,
		benefits         TEXT NOT NULL DEFAULT '[]',
		listing_duration INTEGER NOT NULL,
		status           TEXT NOT NULL DEFAULT 'DRAFT',
		created_at       INTEGER NOT NULL,
		updated_at       INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_job_posts_status ON job_posts(status);
	CREATE INDEX IF NOT EXISTS idx_job_posts_company_id ON job_posts(company_id);
	CREATE TABLE IF NOT EXISTS billing_identities (
		user_id            TEXT PRIMARY KEY REFERENCES users(id),
		stripe_customer_id TEXT NOT NULL UNIQUE,
		created_at         INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init job-board schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity (used for readiness probes).
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateUser inserts a new user record.
func (s *Store) CreateUser(u *User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO users (id, email, name, api_token, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.APIToken, u.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID. Returns (nil, nil) when absent.
func (s *Store) GetUser(id string) (*User, error) {
	row := s.db.QueryRow(`SELECT id, email, name, api_token, created_at
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByAPIToken retrieves a user by bearer token. Returns (nil, nil) when absent.
func (s *Store) GetUserByAPIToken(token string) (*User, error) {
	row := s.db.QueryRow(`SELECT id, email, name, api_token, created_at
		FROM users WHERE api_token = ?`, token)
	return scanUser(row)
}

// CreateCompany inserts a new company record. The user_id unique constraint
// enforces at most one company per user.
func (s *Store) CreateCompany(c *Company) error {
	if c == nil {
		return fmt.Errorf("company is nil")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO companies (id, user_id, name, created_at)
		VALUES (?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// GetCompanyByUserID retrieves the company owned by a user. Returns (nil, nil) when absent.
func (s *Store) GetCompanyByUserID(userID string) (*Company, error) {
	row := s.db.QueryRow(`SELECT id, user_id, name, created_at
		FROM companies WHERE user_id = ?`, userID)
	return scanCompany(row)
}

// CreateJob inserts a new job posting. A zero Status defaults to DRAFT.
func (s *Store) CreateJob(j *JobPosting) error {
	if j == nil {
		return fmt.Errorf("job posting is nil")
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	if j.Status == "" {
		j.Status = JobStatusDraft
	}

	benefits, err := json.Marshal(j.Benefits)
	if err != nil {
		return fmt.Errorf("encode benefits: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO job_posts (
			id, company_id, title, description, employment_type, location,
			salary_from, salary_to, benefits, listing_duration, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.CompanyID, j.Title, j.Description, j.EmploymentType, j.Location,
		j.SalaryFrom, j.SalaryTo, string(benefits), j.ListingDuration, string(j.Status),
		j.CreatedAt.Unix(), j.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create job posting: %w", err)
	}
	return nil
}

// GetJob retrieves a job posting by ID. Returns (nil, nil) when absent.
func (s *Store) GetJob(id string) (*JobPosting, error) {
	row := s.db.QueryRow(`SELECT
		id, company_id, title, description, employment_type, location,
		salary_from, salary_to, benefits, listing_duration, status,
		created_at, updated_at
		FROM job_posts WHERE id = ?`, id)
	return scanJob(row)
}

// PublishJob transitions a job posting from DRAFT to ACTIVE.
//
// The update is a single conditional write: it applies only when the posting
// exists, belongs to companyID, and is still DRAFT. Concurrent or repeated
// calls for the same posting therefore produce at most one effective
// transition. It returns whether this call performed the transition.
func (s *Store) PublishJob(jobID, companyID string) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE job_posts SET status = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND status = ?`,
		string(JobStatusActive), time.Now().UTC().Unix(),
		jobID, companyID, string(JobStatusDraft),
	)
	if err != nil {
		return false, fmt.Errorf("publish job posting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("publish job posting: rows affected: %w", err)
	}
	return affected > 0, nil
}

// PublishAllDrafts transitions every DRAFT posting to ACTIVE. Operator
// recovery path for confirmations that were permanently lost upstream.
func (s *Store) PublishAllDrafts() (int64, error) {
	res, err := s.db.Exec(`
		UPDATE job_posts SET status = ?, updated_at = ?
		WHERE status = ?`,
		string(JobStatusActive), time.Now().UTC().Unix(), string(JobStatusDraft),
	)
	if err != nil {
		return 0, fmt.Errorf("publish drafts: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("publish drafts: rows affected: %w", err)
	}
	return affected, nil
}

// ListActiveJobs returns all ACTIVE postings, newest first. DRAFT postings
// are never listed.
func (s *Store) ListActiveJobs() ([]*JobPosting, error) {
	rows, err := s.db.Query(`SELECT
		id, company_id, title, description, employment_type, location,
		salary_from, salary_to, benefits, listing_duration, status,
		created_at, updated_at
		FROM job_posts WHERE status = ? ORDER BY created_at DESC`,
		string(JobStatusActive))
	if err != nil {
		return nil, fmt.Errorf("list active jobs: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ListDraftJobsOlderThan returns DRAFT postings created before cutoff, for
// operator inspection of abandoned checkouts.
func (s *Store) ListDraftJobsOlderThan(cutoff time.Time) ([]*JobPosting, error) {
	rows, err := s.db.Query(`SELECT
		id, company_id, title, description, employment_type, location,
		salary_from, salary_to, benefits, listing_duration, status,
		created_at, updated_at
		FROM job_posts WHERE status = ? AND created_at < ? ORDER BY created_at ASC`,
		string(JobStatusDraft), cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("list stale drafts: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// CountByStatus returns a map of job status -> count.
func (s *Store) CountByStatus() (map[JobStatus]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM job_posts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[JobStatus(status)] = count
	}
	return counts, rows.Err()
}

// CreateBillingIdentity persists a user -> Stripe customer mapping. The
// primary key and unique constraint guarantee at most one mapping per user
// and per customer; a losing concurrent writer gets a constraint error and
// should re-read the winner's row.
func (s *Store) CreateBillingIdentity(b *BillingIdentity) error {
	if b == nil {
		return fmt.Errorf("billing identity is nil")
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO billing_identities (user_id, stripe_customer_id, created_at)
		VALUES (?, ?, ?)`,
		b.UserID, b.StripeCustomerID, b.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("create billing identity: %w", err)
	}
	return nil
}

// GetBillingIdentity retrieves the mapping for a user. Returns (nil, nil) when absent.
func (s *Store) GetBillingIdentity(userID string) (*BillingIdentity, error) {
	row := s.db.QueryRow(`SELECT user_id, stripe_customer_id, created_at
		FROM billing_identities WHERE user_id = ?`, userID)
	return scanBillingIdentity(row)
}

// GetBillingIdentityByCustomerID reverse-resolves a Stripe customer to the
// local user. Returns (nil, nil) when absent.
func (s *Store) GetBillingIdentityByCustomerID(customerID string) (*BillingIdentity, error) {
	row := s.db.QueryRow(`SELECT user_id, stripe_customer_id, created_at
		FROM billing_identities WHERE stripe_customer_id = ?`, customerID)
	return scanBillingIdentity(row)
}

// scanner is an interface satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var u User
	var createdAt int64
	err := s.Scan(&u.ID, &u.Email, &u.Name, &u.APIToken, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &u, nil
}

func scanCompany(s scanner) (*Company, error) {
	var c Company
	var createdAt int64
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan company: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &c, nil
}

func scanJob(s scanner) (*JobPosting, error) {
	var j JobPosting
	var status, benefits string
	var createdAt, updatedAt int64

	err := s.Scan(
		&j.ID, &j.CompanyID, &j.Title, &j.Description, &j.EmploymentType, &j.Location,
		&j.SalaryFrom, &j.SalaryTo, &benefits, &j.ListingDuration, &status,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job posting: %w", err)
	}

	j.Status = JobStatus(status)
	j.CreatedAt = time.Unix(createdAt, 0).UTC()
	j.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if err := json.Unmarshal([]byte(benefits), &j.Benefits); err != nil {
		return nil, fmt.Errorf("decode benefits: %w", err)
	}
	return &j, nil
}

func scanJobs(rows *sql.Rows) ([]*JobPosting, error) {
	var jobs []*JobPosting
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanBillingIdentity(s scanner) (*BillingIdentity, error) {
	var b BillingIdentity
	var createdAt int64
	err := s.Scan(&b.UserID, &b.StripeCustomerID, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan billing identity: %w", err)
	}
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &b, nil
}
