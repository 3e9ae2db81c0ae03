package interfaces

import (
	"context"

	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

// WebhookUseCase defines the interface for webhook event processing
type WebhookUseCase interface {
	// Dispatch renders an event and delivers its lines to the destination channel
	Dispatch(ctx context.Context, event *model.Event) error
}
