package store

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedCompany(t *testing.T, s *Store, userID, companyID string) {
	t.Helper()
	token, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken: %v", err)
	}
	if err := s.CreateUser(&User{ID: userID, Email: userID + "@example.com", APIToken: token}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateCompany(&Company{ID: companyID, UserID: userID, Name: "Acme"}); err != nil {
		t.Fatalf("CreateCompany: %v", err)
	}
}

func TestGenerateAPIToken(t *testing.T) {
	token, err := GenerateAPIToken()
	if err != nil {
		t.Fatalf("GenerateAPIToken: %v", err)
	}
	if !strings.HasPrefix(token, "jd_") {
		t.Errorf("expected prefix jd_, got %q", token)
	}
	if len(token) != 35 { // "jd_" + 32 hex chars
		t.Errorf("expected length 35, got %d (%q)", len(token), token)
	}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := GenerateAPIToken()
		if err != nil {
			t.Fatal(err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token: %s", tok)
		}
		seen[tok] = true
	}
}

func TestJobCRUD(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	job := &JobPosting{
		ID:              NewID(),
		CompanyID:       "comp-1",
		Title:           "Senior Gopher",
		Description:     "Write Go all day.",
		EmploymentType:  "full-time",
		Location:        "Remote",
		SalaryFrom:      90000,
		SalaryTo:        140000,
		Benefits:        []string{"401k", "remote"},
		ListingDuration: 30,
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != JobStatusDraft {
		t.Errorf("Status = %q, want DRAFT", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got == nil {
		t.Fatal("GetJob returned nil")
	}
	if got.Title != "Senior Gopher" {
		t.Errorf("Title = %q, want %q", got.Title, "Senior Gopher")
	}
	if got.Status != JobStatusDraft {
		t.Errorf("Status = %q, want DRAFT", got.Status)
	}
	if len(got.Benefits) != 2 || got.Benefits[0] != "401k" {
		t.Errorf("Benefits = %v, want [401k remote]", got.Benefits)
	}

	missing, err := s.GetJob("nope")
	if err != nil {
		t.Fatalf("GetJob missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing job, got %+v", missing)
	}
}

func TestPublishJobIsConditionalAndIdempotent(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	job := &JobPosting{
		ID:              NewID(),
		CompanyID:       "comp-1",
		Title:           "Backend Engineer",
		Description:     "APIs.",
		EmploymentType:  "full-time",
		Location:        "Berlin",
		ListingDuration: 30,
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	published, err := s.PublishJob(job.ID, "comp-1")
	if err != nil {
		t.Fatalf("PublishJob: %v", err)
	}
	if !published {
		t.Fatal("first publish should transition the posting")
	}

	// Replay: the conditional write must be a no-op, not an error.
	published, err = s.PublishJob(job.ID, "comp-1")
	if err != nil {
		t.Fatalf("PublishJob replay: %v", err)
	}
	if published {
		t.Error("replayed publish should not report a transition")
	}

	got, err := s.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobStatusActive {
		t.Errorf("Status = %q, want ACTIVE", got.Status)
	}
}

func TestPublishJobRejectsWrongCompany(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")
	seedCompany(t, s, "user-2", "comp-2")

	job := &JobPosting{
		ID:              NewID(),
		CompanyID:       "comp-1",
		Title:           "Designer",
		Description:     "Pixels.",
		EmploymentType:  "contract",
		Location:        "Remote",
		ListingDuration: 60,
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	published, err := s.PublishJob(job.ID, "comp-2")
	if err != nil {
		t.Fatalf("PublishJob: %v", err)
	}
	if published {
		t.Error("publish with mismatched company must not transition")
	}

	got, _ := s.GetJob(job.ID)
	if got.Status != JobStatusDraft {
		t.Errorf("Status = %q, want DRAFT", got.Status)
	}
}

func TestConcurrentPublishHasOneEffectiveTransition(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	job := &JobPosting{
		ID:              NewID(),
		CompanyID:       "comp-1",
		Title:           "SRE",
		Description:     "Pager duty.",
		EmploymentType:  "full-time",
		Location:        "Remote",
		ListingDuration: 90,
	}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			published, err := s.PublishJob(job.ID, "comp-1")
			if err != nil {
				t.Errorf("PublishJob: %v", err)
				return
			}
			results <- published
		}()
	}
	wg.Wait()
	close(results)

	transitions := 0
	for published := range results {
		if published {
			transitions++
		}
	}
	if transitions != 1 {
		t.Errorf("effective transitions = %d, want exactly 1", transitions)
	}
}

func TestListActiveJobsExcludesDrafts(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	draft := &JobPosting{ID: NewID(), CompanyID: "comp-1", Title: "Draft", Description: "d", EmploymentType: "full-time", Location: "x", ListingDuration: 30}
	live := &JobPosting{ID: NewID(), CompanyID: "comp-1", Title: "Live", Description: "l", EmploymentType: "full-time", Location: "x", ListingDuration: 30}
	for _, j := range []*JobPosting{draft, live} {
		if err := s.CreateJob(j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}
	if _, err := s.PublishJob(live.ID, "comp-1"); err != nil {
		t.Fatalf("PublishJob: %v", err)
	}

	jobs, err := s.ListActiveJobs()
	if err != nil {
		t.Fatalf("ListActiveJobs: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("len(jobs) = %d, want 1", len(jobs))
	}
	if jobs[0].ID != live.ID {
		t.Errorf("listed job = %s, want %s", jobs[0].ID, live.ID)
	}
}

func TestPublishAllDrafts(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	for i := 0; i < 3; i++ {
		j := &JobPosting{ID: NewID(), CompanyID: "comp-1", Title: "Job", Description: "d", EmploymentType: "full-time", Location: "x", ListingDuration: 30}
		if err := s.CreateJob(j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	n, err := s.PublishAllDrafts()
	if err != nil {
		t.Fatalf("PublishAllDrafts: %v", err)
	}
	if n != 3 {
		t.Errorf("published = %d, want 3", n)
	}

	// Second run finds nothing left to publish.
	n, err = s.PublishAllDrafts()
	if err != nil {
		t.Fatalf("PublishAllDrafts again: %v", err)
	}
	if n != 0 {
		t.Errorf("published = %d, want 0", n)
	}
}

func TestBillingIdentityUniqueness(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	first := &BillingIdentity{UserID: "user-1", StripeCustomerID: "cus_first"}
	if err := s.CreateBillingIdentity(first); err != nil {
		t.Fatalf("CreateBillingIdentity: %v", err)
	}

	// A second mapping for the same user must violate the primary key.
	second := &BillingIdentity{UserID: "user-1", StripeCustomerID: "cus_second"}
	if err := s.CreateBillingIdentity(second); err == nil {
		t.Fatal("expected constraint violation for duplicate user mapping")
	}

	got, err := s.GetBillingIdentity("user-1")
	if err != nil {
		t.Fatalf("GetBillingIdentity: %v", err)
	}
	if got == nil || got.StripeCustomerID != "cus_first" {
		t.Errorf("mapping = %+v, want winner cus_first", got)
	}

	byCustomer, err := s.GetBillingIdentityByCustomerID("cus_first")
	if err != nil {
		t.Fatalf("GetBillingIdentityByCustomerID: %v", err)
	}
	if byCustomer == nil || byCustomer.UserID != "user-1" {
		t.Errorf("reverse lookup = %+v, want user-1", byCustomer)
	}

	missing, err := s.GetBillingIdentityByCustomerID("cus_unknown")
	if err != nil {
		t.Fatalf("GetBillingIdentityByCustomerID missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for unknown customer, got %+v", missing)
	}
}

func TestListDraftJobsOlderThan(t *testing.T) {
	s := newTestStore(t)
	seedCompany(t, s, "user-1", "comp-1")

	old := &JobPosting{
		ID: NewID(), CompanyID: "comp-1", Title: "Old", Description: "d",
		EmploymentType: "full-time", Location: "x", ListingDuration: 30,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &JobPosting{ID: NewID(), CompanyID: "comp-1", Title: "Fresh", Description: "d", EmploymentType: "full-time", Location: "x", ListingDuration: 30}
	for _, j := range []*JobPosting{old, fresh} {
		if err := s.CreateJob(j); err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
	}

	stale, err := s.ListDraftJobsOlderThan(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("ListDraftJobsOlderThan: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Errorf("stale = %v, want only the old draft", stale)
	}
}
