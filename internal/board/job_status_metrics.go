package board

import (
	"context"
	"time"

	"github.com/jobdeck/jobdeck/internal/board/boardmetrics"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/rs/zerolog/log"
)

const jobStatusMetricsInterval = 60 * time.Second

func runJobStatusMetrics(ctx context.Context, st *store.Store) {
	ticker := time.NewTicker(jobStatusMetricsInterval)
	defer ticker.Stop()

	// Prime once at startup so /metrics isn't empty for this gauge.
	updateJobStatusGauges(st)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateJobStatusGauges(st)
		}
	}
}

func updateJobStatusGauges(st *store.Store) {
	counts, err := st.CountByStatus()
	if err != nil {
		log.Error().Err(err).Msg("Failed to update job status metrics")
		return
	}

	known := []store.JobStatus{
		store.JobStatusDraft,
		store.JobStatusActive,
	}
	for _, status := range known {
		boardmetrics.JobsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
