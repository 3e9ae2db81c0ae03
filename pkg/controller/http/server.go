package http

import (
	"context"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
)

// config holds internal HTTP server configuration
type config struct {
	addr          string
	webhookSecret string
	webhookPath   string
	allowedCIDRs  []netip.Prefix
	trustProxy    bool
	sessionStatus func() string
}

// Option is a functional option for Server configuration
type Option func(*config)

// WithAddr sets the server address
func WithAddr(addr string) Option {
	return func(c *config) {
		c.addr = addr
	}
}

// WithWebhookSecret sets the webhook secret
func WithWebhookSecret(secret string) Option {
	return func(c *config) {
		c.webhookSecret = secret
	}
}

// WithWebhookPath sets the path receiving GitHub webhooks
func WithWebhookPath(path string) Option {
	return func(c *config) {
		c.webhookPath = path
	}
}

// WithAllowedCIDRs restricts webhook requests to the given source networks.
// An empty list accepts every source.
func WithAllowedCIDRs(prefixes []netip.Prefix) Option {
	return func(c *config) {
		c.allowedCIDRs = prefixes
	}
}

// WithTrustProxy takes the client address from X-Forwarded-For / X-Real-IP
func WithTrustProxy(trust bool) Option {
	return func(c *config) {
		c.trustProxy = trust
	}
}

// WithSessionStatus sets the chat session state reported by the health endpoint
func WithSessionStatus(status func() string) Option {
	return func(c *config) {
		c.sessionStatus = status
	}
}

// Server represents the HTTP server
type Server struct {
	*http.Server
}

// NewServer creates a new HTTP server
func NewServer(
	ctx context.Context,
	webhookUC interfaces.WebhookUseCase,
	opts ...Option,
) (*Server, error) {
	// Default configuration
	cfg := &config{
		addr:        "localhost:9080",
		webhookPath: "/github",
	}

	// Apply options
	for _, opt := range opts {
		opt(cfg)
	}

	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	if cfg.trustProxy {
		router.Use(middleware.RealIP)
	}
	router.Use(LoggingMiddleware(ctx))
	router.Use(middleware.Recoverer)
	router.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)

	router.Get("/", handleIndex)
	router.Get("/health", handleHealth(cfg.sessionStatus))
	router.Options("/*", handlePreflight)

	// Webhook endpoint
	webhookHandler := NewWebhookHandler(cfg.webhookSecret, webhookUC)
	router.With(OriginFilter(cfg.allowedCIDRs)).Post(cfg.webhookPath, webhookHandler.Handle)

	server := &Server{
		Server: &http.Server{
			Addr:              cfg.addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
		},
	}

	return server, nil
}
