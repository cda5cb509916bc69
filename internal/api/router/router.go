// Package router assembles the engine's HTTP surface: provider webhooks,
// the authenticated calling API, and operational endpoints.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/handlers"
	httpmiddleware "github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/middleware"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger    *logging.Logger
	Webhooks  *handlers.TwilioWebhookHandler
	Campaigns *handlers.CampaignHandler
	Calls     *handlers.CallHandler

	// AuthSecret signs the bearer tokens for the calling API.
	AuthSecret string
	// ChainSecret authenticates campaign chain callbacks.
	ChainSecret string

	MetricsHandler http.Handler
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints. Twilio cannot present bearer tokens; the webhook
	// handlers validate call identity themselves and always answer 200.
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.HandleHealth)
		if cfg.Webhooks != nil {
			public.Route("/webhooks/twilio", func(r chi.Router) {
				r.Post("/voice", cfg.Webhooks.HandleVoice)
				r.Post("/gather", cfg.Webhooks.HandleGather)
				r.Post("/status", cfg.Webhooks.HandleStatus)
				r.Post("/recording", cfg.Webhooks.HandleRecording)
			})
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Calling API. Chain callbacks enter here too, authenticated by the
	// shared chain secret instead of a bearer token.
	r.Group(func(authed chi.Router) {
		authed.Use(httpmiddleware.UserJWT(cfg.AuthSecret, cfg.ChainSecret))
		if cfg.Campaigns != nil {
			authed.Route("/calling/campaigns/{campaignID}", func(r chi.Router) {
				r.Post("/execute", cfg.Campaigns.HandleExecute)
				r.Get("/progress", cfg.Campaigns.HandleProgress)
			})
		}
		if cfg.Calls != nil {
			authed.Post("/calls/outbound", cfg.Calls.HandleOutboundCall)
		}
	})

	return r
}
