package board

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jobdeck/jobdeck/internal/board/billing"
	"github.com/jobdeck/jobdeck/internal/board/store"
	"github.com/jobdeck/jobdeck/internal/logging"
	"github.com/rs/zerolog/log"
	stripelib "github.com/stripe/stripe-go/v82"
)

// Run starts the job board HTTP server with graceful shutdown.
func Run(ctx context.Context, version string) error {
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "jobdeck",
	})

	log.Info().Str("version", version).Msg("Starting JobDeck")

	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "jobdeck",
	})

	if err := os.MkdirAll(cfg.StoreDir(), 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	st, err := store.NewStore(cfg.StoreDir())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	stripelib.Key = cfg.StripeAPIKey

	customers := billing.NewCustomerResolver(st)
	orchestrator := billing.NewCheckoutOrchestrator(st, customers, cfg.BaseURL)
	publisher := billing.NewPublisher(st)
	webhookHandler := billing.NewWebhookHandler(cfg.StripeWebhookSecret, publisher)

	mux := http.NewServeMux()
	RegisterRoutes(mux, Deps{
		Store:          st,
		Orchestrator:   orchestrator,
		WebhookHandler: webhookHandler,
	})

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Derived context for background goroutines
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go runJobStatusMetrics(ctx, st)

	go func() {
		log.Info().Str("addr", addr).Msg("JobDeck listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		log.Info().Msg("Context cancelled, shutting down...")
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	cancel()
	log.Info().Msg("JobDeck stopped")
	return nil
}
