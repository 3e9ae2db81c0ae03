package interfaces

import (
	"context"

	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

// ChatClient defines operations of the chat platform transport
type ChatClient interface {
	// Login connects and authenticates. It returns after the connection is ready.
	Login(ctx context.Context) error

	// Channels lists the channels visible to the bot
	Channels(ctx context.Context) ([]*model.Channel, error)

	// Disconnected receives one value each time an established connection is lost
	Disconnected() <-chan error

	// StartTyping signals composing activity in the channel
	StartTyping(ctx context.Context, channelID string) error

	// PostMessage transmits plain text to the channel
	PostMessage(ctx context.Context, channelID, text string) error

	// StopTyping clears composing activity in the channel
	StopTyping(ctx context.Context, channelID string) error
}

// URLShortener maps a long URL to a short one. It never fails: on any error the input is returned.
type URLShortener interface {
	Shorten(ctx context.Context, url string) string
}
