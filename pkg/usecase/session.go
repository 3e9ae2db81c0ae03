package usecase

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
	"github.com/m-mizutani/ghrelay/pkg/domain/model"
	"github.com/m-mizutani/ghrelay/pkg/utils/async"
	"github.com/m-mizutani/goerr/v2"
)

const (
	// A disconnect within reconnectThrottleWindow of the previous one delays reconnection
	reconnectThrottleWindow = 60 * time.Second
	reconnectThrottleDelay  = 120 * time.Second
)

var errSessionClosed = goerr.New("session closed")

// ReconnectDelay returns how long to wait before reconnecting after a disconnect at now,
// given the time of the previous disconnect (zero if none).
func ReconnectDelay(lastDisconnect, now time.Time) time.Duration {
	if lastDisconnect.IsZero() {
		return 0
	}
	if now.Sub(lastDisconnect) < reconnectThrottleWindow {
		return reconnectThrottleDelay
	}
	return 0
}

// Session owns the chat login, the destination channel handle and reconnection
type Session struct {
	client      interfaces.ChatClient
	channelName string

	state          atomic.Int32
	channel        atomic.Pointer[model.ChannelHandle]
	lastDisconnect atomic.Int64 // unix nano of the latest reconnect attempt, written only by the reconnect loop

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	stop      chan struct{}
	closeOnce sync.Once
	watching  atomic.Bool
}

// SessionOption is a functional option for Session
type SessionOption func(*Session)

// WithClock replaces the time source used for backoff decisions
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithAfter replaces the timer used to delay reconnection
func WithAfter(after func(time.Duration) <-chan time.Time) SessionOption {
	return func(s *Session) {
		s.after = after
	}
}

// NewSession creates a session that will deliver into the channel named channelName
func NewSession(client interfaces.ChatClient, channelName string, opts ...SessionOption) *Session {
	s := &Session{
		client:      client,
		channelName: channelName,
		now:         time.Now,
		after:       time.After,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current connection state
func (s *Session) State() model.ConnectionState {
	return model.ConnectionState(s.state.Load())
}

func (s *Session) setState(state model.ConnectionState) {
	s.state.Store(int32(state))
}

// Channel returns the resolved destination channel, or nil before resolution
func (s *Session) Channel() *model.ChannelHandle {
	return s.channel.Load()
}

// LastDisconnect returns when the most recent disconnect was handled, zero if none.
// For a throttled reconnect this is the end of the wait.
func (s *Session) LastDisconnect() time.Time {
	v := s.lastDisconnect.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v)
}

// Login connects to the chat platform and marks the session ready
func (s *Session) Login(ctx context.Context) error {
	s.setState(model.StateConnecting)

	if err := s.client.Login(ctx); err != nil {
		s.setState(model.StateDisconnected)
		return goerr.Wrap(err, "failed to login to chat", goerr.T(model.ErrTagLogin))
	}

	s.setState(model.StateReady)
	ctxlog.From(ctx).Info("Chat session is ready")
	return nil
}

// ResolveChannel finds the channel called name and fixes it as the destination.
// Once resolved the handle never changes.
func (s *Session) ResolveChannel(ctx context.Context, name string) (*model.ChannelHandle, error) {
	logger := ctxlog.From(ctx)
	name = strings.TrimPrefix(name, "#")

	if current := s.channel.Load(); current != nil {
		if current.Name != name {
			return nil, goerr.New("destination channel is already resolved",
				goerr.V("resolved", current.Name),
				goerr.V("requested", name),
			)
		}
		return current, nil
	}

	logger.Info("Looking for the destination channel", "name", name)

	channels, err := s.client.Channels(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list channels", goerr.T(model.ErrTagChannelNotFound))
	}

	for _, ch := range channels {
		if ch.Name != name {
			continue
		}
		s.channel.CompareAndSwap(nil, &model.ChannelHandle{ID: ch.ID, Name: ch.Name})
		resolved := s.channel.Load()
		logger.Info("Found the destination channel", "name", resolved.Name, "id", resolved.ID)
		return resolved, nil
	}

	return nil, goerr.New("no channel found for the bot to post to",
		goerr.T(model.ErrTagChannelNotFound),
		goerr.V("name", name),
		goerr.V("visible_channels", len(channels)),
	)
}

// Start logs in, resolves the destination channel and starts watching for disconnects.
// Any failure is fatal: the relay cannot run without a destination.
func (s *Session) Start(ctx context.Context) error {
	if err := s.Login(ctx); err != nil {
		return err
	}

	if _, err := s.ResolveChannel(ctx, s.channelName); err != nil {
		return err
	}

	if s.watching.CompareAndSwap(false, true) {
		async.Go(ctx, "session-watch", s.watch)
	}
	return nil
}

// Close stops reconnection handling
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.stop)
	})
}

func (s *Session) watch(ctx context.Context) error {
	for {
		select {
		case <-s.stop:
			return nil
		case cause, ok := <-s.client.Disconnected():
			if !ok {
				return nil
			}
			if err := s.reconnect(ctx, cause); err != nil {
				if err == errSessionClosed {
					return nil
				}
				return err
			}
		}
	}
}

// reconnect applies the backoff policy and logs in again until it succeeds
func (s *Session) reconnect(ctx context.Context, cause error) error {
	logger := ctxlog.From(ctx)

	for {
		s.setState(model.StateDisconnected)

		delay := ReconnectDelay(s.LastDisconnect(), s.now())
		if delay > 0 {
			logger.Error("Disconnected twice within throttle window, delaying reconnect",
				"error", cause,
				"delay", delay,
			)
			if err := s.wait(ctx, delay); err != nil {
				return err
			}
		} else {
			logger.Warn("Disconnected from chat, reconnecting", "error", cause)
		}

		// stamped after the wait: a login failing right away counts as a disconnect
		// within the window, so every failed attempt is followed by the full delay
		s.lastDisconnect.Store(s.now().UnixNano())

		err := s.Login(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return goerr.Wrap(ctx.Err(), "reconnect aborted")
		}
		cause = err
	}
}

func (s *Session) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-s.after(d):
		return nil
	case <-s.stop:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
