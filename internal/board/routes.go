package board

import (
	"net/http"
	"time"

	"github.com/jobdeck/jobdeck/internal/board/billing"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps carries the wired components the HTTP surface needs.
type Deps struct {
	Store          *store.Store
	Orchestrator   *billing.CheckoutOrchestrator
	WebhookHandler *billing.WebhookHandler
}

// RegisterRoutes attaches all HTTP routes to mux.
func RegisterRoutes(mux *http.ServeMux, deps Deps) {
	// Stripe retries on 5xx, so the limiter is generous. It only guards
	// against floods on the unauthenticated endpoint.
	webhookLimiter := NewRateLimiter(120, time.Minute)
	mux.Handle("/api/stripe/webhook", webhookLimiter.Middleware(deps.WebhookHandler))

	mux.Handle("/api/jobs", jobsDispatch(deps))
	mux.Handle("/api/company", requireUserAuth(deps.Store, HandleCreateCompany(deps.Store)))

	mux.HandleFunc("/healthz", HandleHealthz)
	mux.Handle("/readyz", HandleReadyz(deps.Store))
	mux.Handle("/metrics", promhttp.Handler())
}

// jobsDispatch splits /api/jobs by method: listing is public, creation
// requires a bearer token.
func jobsDispatch(deps Deps) http.Handler {
	list := HandleListJobs(deps.Store)
	create := requireUserAuth(deps.Store, HandleCreateJob(deps.Orchestrator))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			list(w, r)
		case http.MethodPost:
			create.ServeHTTP(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
