package board

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jobdeck/jobdeck/internal/board/billing"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/rs/zerolog/log"
)

const requestBodyLimit = 256 * 1024 // 256 KiB

type createJobResponse struct {
	JobID string `json:"job_id"`
	URL   string `json:"url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleCreateJob creates a DRAFT job posting and returns the checkout
// redirect URL. The posting only goes live once payment is confirmed via
// webhook.
// Route: POST /api/jobs (bearer-token authenticated)
func HandleCreateJob(orchestrator *billing.CheckoutOrchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		user := userFromContext(r.Context())
		if user == nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, requestBodyLimit)
		var req billing.JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}

		redirectURL, err := orchestrator.CreateJobAndCheckout(r.Context(), user, &req)
		if err != nil {
			var verr *billing.ValidationError
			switch {
			case errors.As(err, &verr):
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			case errors.Is(err, billing.ErrCompanyNotFound):
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "company not found"})
			default:
				log.Error().Err(err).Str("user_id", user.ID).Msg("Job creation failed")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			}
			return
		}

		writeJSON(w, http.StatusOK, createJobResponse{URL: redirectURL})
	}
}

// HandleListJobs lists publicly visible (ACTIVE) job postings.
// Route: GET /api/jobs (public)
func HandleListJobs(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		jobs, err := st.ListActiveJobs()
		if err != nil {
			log.Error().Err(err).Msg("List active jobs failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		if jobs == nil {
			jobs = []*store.JobPosting{}
		}
		writeJSON(w, http.StatusOK, jobs)
	}
}

type createCompanyRequest struct {
	Name string `json:"name"`
}

// HandleCreateCompany registers the caller's hiring company. At most one
// company per user; a second create is rejected.
// Route: POST /api/company (bearer-token authenticated)
func HandleCreateCompany(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		user := userFromContext(r.Context())
		if user == nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, requestBodyLimit)
		var req createCompanyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "name is required"})
			return
		}

		existing, err := st.GetCompanyByUserID(user.ID)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}
		if existing != nil {
			writeJSON(w, http.StatusConflict, errorResponse{Error: "company already exists"})
			return
		}

		company := &store.Company{
			ID:     store.NewID(),
			UserID: user.ID,
			Name:   name,
		}
		if err := st.CreateCompany(company); err != nil {
			log.Error().Err(err).Str("user_id", user.ID).Msg("Company creation failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
			return
		}

		writeJSON(w, http.StatusCreated, company)
	}
}

// HandleHealthz is an unauthenticated liveness probe.
func HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// HandleReadyz reports readiness based on store connectivity.
func HandleReadyz(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := st.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "store unavailable"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	}
}

func writeJSON[T any](w http.ResponseWriter, status int, v T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Int("status", status).Msg("board: encode response")
	}
}
