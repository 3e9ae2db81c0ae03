package errs

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err and reports it to Sentry when a Sentry client is configured.
// The hub attached to ctx (set by the Sentry HTTP middleware) is preferred over the global one.
func Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub = hub.Clone()

	hub.ConfigureScope(func(scope *sentry.Scope) {
		if goErr := goerr.Unwrap(err); goErr != nil {
			if values := goErr.Values(); len(values) > 0 {
				scope.SetContext("goerr", sentry.Context(values))
			}
		}
	})

	attrs := []any{"error", err}
	if evID := hub.CaptureException(err); evID != nil {
		attrs = append(attrs, "sentry.event_id", string(*evID))
	}

	ctxlog.From(ctx).Error("Request failed", attrs...)
}
