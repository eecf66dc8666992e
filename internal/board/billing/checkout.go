package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/jobdeck/jobdeck/internal/board/boardmetrics"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	stripesession "github.com/stripe/stripe-go/v82/checkout/session"
)

// MetadataJobIDKey is the correlation key carried on every checkout session.
// It is the only channel linking a Stripe event back to a local job posting
// and must never be omitted when opening a session.
const MetadataJobIDKey = "jobId"

const (
	titleMinLen       = 2
	titleMaxLen       = 120
	descriptionMinLen = 10
	descriptionMaxLen = 10000
)

var employmentTypes = map[string]bool{
	"full-time":  true,
	"part-time":  true,
	"contract":   true,
	"internship": true,
}

// JobRequest carries the validated fields of a job-creation request.
type JobRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	EmploymentType  string   `json:"employment_type"`
	Location        string   `json:"location"`
	SalaryFrom      int64    `json:"salary_from"`
	SalaryTo        int64    `json:"salary_to"`
	Benefits        []string `json:"benefits"`
	ListingDuration int      `json:"listing_duration"`
}

// Validate checks schema constraints. The listing duration is validated
// against the pricing catalog here, before any draft is written.
func (r *JobRequest) Validate() error {
	if n := len(strings.TrimSpace(r.Title)); n < titleMinLen || n > titleMaxLen {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("length must be %d-%d characters", titleMinLen, titleMaxLen)}
	}
	if n := len(strings.TrimSpace(r.Description)); n < descriptionMinLen || n > descriptionMaxLen {
		return &ValidationError{Field: "description", Reason: fmt.Sprintf("length must be %d-%d characters", descriptionMinLen, descriptionMaxLen)}
	}
	if !employmentTypes[strings.TrimSpace(r.EmploymentType)] {
		return &ValidationError{Field: "employment_type", Reason: "must be one of full-time, part-time, contract, internship"}
	}
	if strings.TrimSpace(r.Location) == "" {
		return &ValidationError{Field: "location", Reason: "required"}
	}
	if r.SalaryFrom < 0 || r.SalaryTo < 0 {
		return &ValidationError{Field: "salary", Reason: "must be non-negative"}
	}
	if r.SalaryFrom > r.SalaryTo {
		return &ValidationError{Field: "salary", Reason: "salary_from must not exceed salary_to"}
	}
	if _, err := PriceForDuration(r.ListingDuration); err != nil {
		return &ValidationError{Field: "listing_duration", Reason: fmt.Sprintf("must be one of %v days", Durations())}
	}
	return nil
}

// CheckoutOrchestrator persists draft job postings and opens Stripe checkout
// sessions for them.
type CheckoutOrchestrator struct {
	store                 *store.Store
	customers             *CustomerResolver
	createCheckoutSession func(params *stripelib.CheckoutSessionParams) (*stripelib.CheckoutSession, error)
	baseURL               string
}

// NewCheckoutOrchestrator creates a CheckoutOrchestrator. baseURL is where
// Stripe sends the buyer back after checkout (e.g. "https://jobdeck.example").
func NewCheckoutOrchestrator(st *store.Store, customers *CustomerResolver, baseURL string) *CheckoutOrchestrator {
	return &CheckoutOrchestrator{
		store:                 st,
		customers:             customers,
		createCheckoutSession: stripesession.New,
		baseURL:               strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

// CreateJobAndCheckout validates the request, persists a DRAFT posting,
// resolves the requester's billing identity, and opens a checkout session
// carrying the job ID as correlation metadata. It returns the session URL
// for the caller to redirect to.
//
// The draft write is durable before any Stripe call so the webhook can always
// find the posting by the ID embedded in the session. If the checkout step
// fails, the draft remains; that partial state is inert and accepted.
func (o *CheckoutOrchestrator) CreateJobAndCheckout(ctx context.Context, user *store.User, req *JobRequest) (redirectURL string, err error) {
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		boardmetrics.CheckoutSessionsTotal.WithLabelValues(outcome).Inc()
	}()

	if user == nil {
		return "", fmt.Errorf("user is nil")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	tier, err := PriceForDuration(req.ListingDuration)
	if err != nil {
		return "", &ValidationError{Field: "listing_duration", Reason: err.Error()}
	}

	company, err := o.store.GetCompanyByUserID(user.ID)
	if err != nil {
		return "", fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return "", fmt.Errorf("user %s: %w", user.ID, ErrCompanyNotFound)
	}

	job := &store.JobPosting{
		ID:              store.NewID(),
		CompanyID:       company.ID,
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		EmploymentType:  strings.TrimSpace(req.EmploymentType),
		Location:        strings.TrimSpace(req.Location),
		SalaryFrom:      req.SalaryFrom,
		SalaryTo:        req.SalaryTo,
		Benefits:        req.Benefits,
		ListingDuration: req.ListingDuration,
		Status:          store.JobStatusDraft,
	}
	if err := o.store.CreateJob(job); err != nil {
		return "", fmt.Errorf("create draft job: %w", err)
	}

	customerID, err := o.customers.Resolve(ctx, user)
	if err != nil {
		return "", fmt.Errorf("resolve billing identity: %w", err)
	}

	params := &stripelib.CheckoutSessionParams{
		Mode:     stripelib.String(string(stripelib.CheckoutSessionModePayment)),
		Customer: stripelib.String(customerID),
		LineItems: []*stripelib.CheckoutSessionLineItemParams{
			{
				PriceData: &stripelib.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripelib.String(string(stripelib.CurrencyUSD)),
					UnitAmount: stripelib.Int64(tier.Price * 100),
					ProductData: &stripelib.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripelib.String(tier.Description),
					},
				},
				Quantity: stripelib.Int64(1),
			},
		},
		Metadata: map[string]string{
			MetadataJobIDKey: job.ID,
		},
		SuccessURL: stripelib.String(o.baseURL + "/payment/success"),
		CancelURL:  stripelib.String(o.baseURL + "/payment/cancel"),
	}
	params.Context = ctx

	session, err := o.createCheckoutSession(params)
	if err != nil {
		log.Error().Err(err).
			Str("job_id", job.ID).
			Str("customer_id", customerID).
			Msg("Checkout session creation failed; draft posting retained")
		return "", fmt.Errorf("create checkout session for job %s: %w", job.ID, err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return "", fmt.Errorf("create checkout session for job %s: empty session URL", job.ID)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("customer_id", customerID).
		Int("listing_duration", req.ListingDuration).
		Int64("price_usd", tier.Price).
		Msg("Draft job created, checkout session opened")

	return session.URL, nil
}
