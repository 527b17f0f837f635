package httpx

import (
	"log/slog"
	"net/http"

	"github.com/assistly/llm-jobs/internal/core"
	"github.com/assistly/llm-jobs/internal/service"
	"github.com/assistly/llm-jobs/internal/webhook"
)

// RouterServices holds the services needed by the HTTP router.
type RouterServices struct {
	Jobs       *service.JobService
	Sweeper    *service.SweeperService
	Dispatcher *webhook.Dispatcher
	Secrets    core.SecretSource
	Logger     *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	jobHandlers := &JobHandlers{Svc: services.Jobs}
	mux.Handle("POST /api/jobs", http.HandlerFunc(jobHandlers.Create))
	mux.Handle("GET /api/jobs/{id}", http.HandlerFunc(jobHandlers.Get))
	mux.Handle("POST /api/jobs/{id}/cancel", http.HandlerFunc(jobHandlers.Cancel))

	webhookHandlers := &WebhookHandlers{
		Dispatcher: services.Dispatcher,
		Secrets:    services.Secrets,
		Logger:     logger,
	}
	mux.Handle("POST /api/webhooks/llm", http.HandlerFunc(webhookHandlers.Receive))

	if services.Sweeper != nil {
		sweepHandlers := &SweepHandlers{Svc: services.Sweeper}
		mux.Handle("POST /api/maintenance/sweep", http.HandlerFunc(sweepHandlers.Trigger))
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return Recover(logger)(Logging(logger)(mux))
}
