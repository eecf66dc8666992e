package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jobdeck/jobdeck/internal/board/boardmetrics"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// WebhookHandler handles incoming Stripe webhook events.
type WebhookHandler struct {
	secret    string
	publisher *Publisher
}

type webhookErrorResponse struct {
	Error string `json:"error"`
}

type webhookReceivedResponse struct {
	Received bool `json:"received"`
}

// NewWebhookHandler creates a Stripe webhook HTTP handler.
func NewWebhookHandler(secret string, publisher *Publisher) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		publisher: publisher,
	}
}

// ServeHTTP verifies the Stripe signature and dispatches the event.
//
// The response status is the retry contract with Stripe: 4xx means the event
// can never be processed (do not redeliver), 5xx means a transient failure
// (redeliver later). Processing is idempotent, so redelivery is always safe.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	eventType := "unknown"
	status := http.StatusOK
	defer func() {
		boardmetrics.WebhookRequestsTotal.WithLabelValues(eventType, strconv.Itoa(status)).Inc()
		boardmetrics.WebhookDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
	}()

	if r.Method != http.MethodPost {
		status = http.StatusMethodNotAllowed
		writeJSON(w, http.StatusMethodNotAllowed, webhookErrorResponse{Error: "method not allowed"})
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		status = http.StatusServiceUnavailable
		writeJSON(w, http.StatusServiceUnavailable, webhookErrorResponse{Error: "webhook secret not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "failed to read request body"})
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "missing Stripe signature"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		status = http.StatusBadRequest
		writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "invalid Stripe signature"})
		return
	}
	eventType = string(event.Type)

	if err := h.handleEvent(r, &event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Bool("permanent", IsPermanent(err)).
			Msg("Stripe webhook processing failed")
		if IsPermanent(err) {
			status = http.StatusBadRequest
			writeJSON(w, http.StatusBadRequest, webhookErrorResponse{Error: "event cannot be processed"})
			return
		}
		status = http.StatusInternalServerError
		writeJSON(w, http.StatusInternalServerError, webhookErrorResponse{Error: "processing failed"})
		return
	}

	status = http.StatusOK
	writeJSON(w, http.StatusOK, webhookReceivedResponse{Received: true})
}

func (h *WebhookHandler) handleEvent(r *http.Request, event *stripelib.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var session CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return Permanentf("decode checkout.session: %w", err)
		}
		return h.publisher.HandleCheckoutCompleted(r.Context(), session)

	default:
		log.Info().
			Str("type", string(event.Type)).
			Str("event_id", event.ID).
			Msg("Stripe webhook ignored (unhandled type)")
		return nil
	}
}

// CheckoutSession is a minimal representation of a Stripe checkout.session event.
type CheckoutSession struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

// Publisher applies payment confirmations to job postings.
type Publisher struct {
	store *store.Store
}

// NewPublisher creates a Publisher.
func NewPublisher(st *store.Store) *Publisher {
	return &Publisher{store: st}
}

// HandleCheckoutCompleted transitions the correlated job posting from DRAFT
// to ACTIVE. Safe to call any number of times for the same event: the
// transition is a single conditional write, and a posting that is already
// ACTIVE is a no-op success.
func (p *Publisher) HandleCheckoutCompleted(ctx context.Context, session CheckoutSession) error {
	customerID := strings.TrimSpace(session.Customer)
	if customerID == "" {
		return Permanentf("checkout session %s missing customer", session.ID)
	}
	if !IsSafeStripeID(customerID) {
		return Permanentf("invalid stripe customer id: %s", customerID)
	}

	jobID := strings.TrimSpace(session.Metadata[MetadataJobIDKey])
	if jobID == "" {
		return Permanentf("checkout session %s missing %s metadata", session.ID, MetadataJobIDKey)
	}

	identity, err := p.store.GetBillingIdentityByCustomerID(customerID)
	if err != nil {
		return fmt.Errorf("lookup billing identity by customer: %w", err)
	}
	if identity == nil {
		return Permanentf("no billing identity for stripe customer %s", customerID)
	}

	company, err := p.store.GetCompanyByUserID(identity.UserID)
	if err != nil {
		return fmt.Errorf("lookup company: %w", err)
	}
	if company == nil {
		return Permanentf("no company for user %s (customer %s)", identity.UserID, customerID)
	}

	published, err := p.store.PublishJob(jobID, company.ID)
	if err != nil {
		return fmt.Errorf("publish job %s: %w", jobID, err)
	}
	if published {
		boardmetrics.JobsPublishedTotal.Inc()
		log.Info().
			Str("job_id", jobID).
			Str("company_id", company.ID).
			Str("customer_id", customerID).
			Msg("Job posting published from checkout")
		return nil
	}

	// No row transitioned: distinguish a redelivered event (posting already
	// ACTIVE) from a posting that does not exist or belongs elsewhere.
	job, err := p.store.GetJob(jobID)
	if err != nil {
		return fmt.Errorf("lookup job %s: %w", jobID, err)
	}
	if job == nil {
		return Permanentf("job %s not found", jobID)
	}
	if job.CompanyID != company.ID {
		return Permanentf("job %s does not belong to company %s", jobID, company.ID)
	}
	if job.Status == store.JobStatusActive {
		log.Info().
			Str("job_id", jobID).
			Str("company_id", company.ID).
			Msg("Job posting already published, skipping duplicate delivery")
		return nil
	}
	return Permanentf("job %s in unexpected status %s", jobID, job.Status)
}

// IsSafeStripeID validates that a Stripe ID (cus_..., cs_...) is safe for use
// as a lookup key.
func IsSafeStripeID(stripeID string) bool {
	if len(stripeID) < 5 || len(stripeID) > 128 {
		return false
	}
	for i := 0; i < len(stripeID); i++ {
		c := stripeID[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("billing: encode webhook response")
	}
}
