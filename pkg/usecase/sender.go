package usecase

import (
	"context"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

const (
	defaultSendRate  = 1
	defaultSendBurst = 5
)

// ChannelSender delivers text to the destination channel one message at a time
type ChannelSender struct {
	client  interfaces.ChatClient
	session *Session
	limiter *rate.Limiter

	// mu is held for a whole multi-line delivery so two events never interleave
	mu sync.Mutex
}

// SenderOption is a functional option for ChannelSender
type SenderOption func(*ChannelSender)

// WithSendRate sets the outbound message rate. A non-positive rate disables pacing.
func WithSendRate(perSec float64, burst int) SenderOption {
	return func(s *ChannelSender) {
		if perSec <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// NewChannelSender creates a sender bound to the session's destination channel
func NewChannelSender(client interfaces.ChatClient, session *Session, opts ...SenderOption) *ChannelSender {
	s := &ChannelSender{
		client:  client,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(defaultSendRate), defaultSendBurst),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers a single line and blocks until it is acknowledged or fails
func (s *ChannelSender) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.send(ctx, text)
}

// SendLines delivers lines in order while holding exclusive channel access.
// It stops at the first failed line; the remaining lines are not attempted.
func (s *ChannelSender) SendLines(ctx context.Context, lines []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range lines {
		if err := s.send(ctx, line); err != nil {
			return goerr.Wrap(err, "failed to deliver line",
				goerr.V("index", i),
				goerr.V("total", len(lines)),
			)
		}
	}
	return nil
}

func (s *ChannelSender) send(ctx context.Context, text string) error {
	logger := ctxlog.From(ctx)

	channel := s.session.Channel()
	if channel == nil {
		return goerr.New("destination channel is not resolved", goerr.T(model.ErrTagNoChannel))
	}

	if state := s.session.State(); state != model.StateReady {
		return goerr.New("chat session is not ready",
			goerr.T(model.ErrTagNotReady),
			goerr.V("state", state.String()),
		)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "interrupted while waiting for send slot", goerr.T(model.ErrTagTransport))
	}

	// Typing indicators are cosmetic, their failures never fail the send
	if err := s.client.StartTyping(ctx, channel.ID); err != nil {
		logger.Warn("Failed to start typing", "error", err, "channel_id", channel.ID)
	}

	postErr := s.client.PostMessage(ctx, channel.ID, text)

	if err := s.client.StopTyping(ctx, channel.ID); err != nil {
		logger.Warn("Failed to stop typing", "error", err, "channel_id", channel.ID)
	}

	if postErr != nil {
		return goerr.Wrap(postErr, "failed to post message",
			goerr.T(model.ErrTagTransport),
			goerr.V("channel_id", channel.ID),
		)
	}

	logger.Debug("Message delivered", "channel_id", channel.ID, "length", len(text))
	return nil
}
