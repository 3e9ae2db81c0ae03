package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	githubcontroller "github.com/m-mizutani/ghrelay/pkg/controller/github"
	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/ghrelay/pkg/utils/errs"
	"github.com/m-mizutani/goerr/v2"
)

// GitHub caps webhook payloads at 25 MB
const maxPayloadSize = 25 << 20

// WebhookHandler handles GitHub webhooks
type WebhookHandler struct {
	secret    string
	webhookUC interfaces.WebhookUseCase
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(secret string, webhookUC interfaces.WebhookUseCase) *WebhookHandler {
	return &WebhookHandler{
		secret:    secret,
		webhookUC: webhookUC,
	}
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	// Read payload
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature, also unwrapping form encoded payloads
	signature := r.Header.Get(github.SHA256SignatureHeader)
	if signature == "" {
		signature = r.Header.Get(github.SHA1SignatureHeader)
	}
	payload, err := github.ValidatePayloadFromBody(r.Header.Get("Content-Type"), bytes.NewReader(body), signature, []byte(h.secret))
	if err != nil {
		logger.Warn("Invalid webhook signature", "error", err)
		writeError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	eventType := github.WebHookType(r)
	event, err := githubcontroller.ParseEvent(eventType, payload)
	if err != nil {
		logger.Error("Failed to parse webhook payload", "error", err)
		writeError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	event.ID = github.DeliveryID(r)
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	event.ReceivedAt = time.Now()

	logger.Info("Accepted webhook event",
		"delivery_id", event.ID,
		"event_type", eventType,
		"repository", event.Repository,
		"actor", event.Actor,
	)

	// Delivery outlives a client that stops waiting for the response
	if err := h.webhookUC.Dispatch(context.WithoutCancel(ctx), event); err != nil {
		errs.Handle(ctx, err)
		writeError(w, dispatchErrorCode(err), http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// dispatchErrorCode maps a dispatch failure to a short code without internal detail
func dispatchErrorCode(err error) string {
	switch {
	case goerr.HasTag(err, model.ErrTagNoChannel):
		return "channel_unavailable"
	case goerr.HasTag(err, model.ErrTagNotReady):
		return "not_connected"
	default:
		return "delivery_failed"
	}
}
