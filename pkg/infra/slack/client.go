package slack

import (
	"context"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/m-mizutani/ghrelay/pkg/domain/model"
)

const channelPageSize = 200

// Client is a Slack bot connection. The session runs over Socket Mode, messages go
// through the Web API. A typing indicator needs an RTM connection, which only classic
// bot tokens can open; it is optional and best effort.
type Client struct {
	api   *slack.Client
	debug bool

	typing bool

	mu   sync.Mutex
	conn *connection
	rtm  *typingConn

	disconnected chan error
}

// Option is a functional option for Client
type Option func(*options)

type options struct {
	apiURL string
	debug  bool
	typing bool
}

// WithAPIURL points the client at another Slack API base URL
func WithAPIURL(url string) Option {
	return func(o *options) {
		o.apiURL = url
	}
}

// WithDebug enables slack-go debug output
func WithDebug(debug bool) Option {
	return func(o *options) {
		o.debug = debug
	}
}

// WithTyping opens an RTM connection next to the session to show typing indicators
func WithTyping(enabled bool) Option {
	return func(o *options) {
		o.typing = enabled
	}
}

// New creates a Slack client from a bot token and an app-level (xapp-) token
func New(botToken, appToken string, opts ...Option) *Client {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	slackOpts := []slack.Option{
		slack.OptionDebug(o.debug),
		slack.OptionAppLevelToken(appToken),
	}
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(o.apiURL))
	}

	return &Client{
		api:          slack.New(botToken, slackOpts...),
		debug:        o.debug,
		typing:       o.typing,
		disconnected: make(chan error, 1),
	}
}

// connection is one Socket Mode run. done is closed when RunContext returns.
type connection struct {
	sm      *socketmode.Client
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	stopped chan struct{}
	once    sync.Once
}

// stop cancels the run and keeps draining its events until it has returned
func (c *connection) stop() {
	c.once.Do(func() {
		close(c.stopped)
		c.cancel()
		go func() {
			for {
				select {
				case <-c.sm.Events:
				case <-c.done:
					return
				}
			}
		}()
	})
}

// runErr returns why RunContext ended, only valid after done is closed
func (c *connection) runErr() error {
	if c.err != nil {
		return c.err
	}
	return goerr.New("slack socket mode stopped")
}

// Login opens a new Socket Mode connection and blocks until it is established or rejected.
// Any previous connection is closed first.
func (c *Client) Login(ctx context.Context) error {
	c.teardown()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	conn := &connection{
		sm:      socketmode.New(c.api, socketmode.OptionDebug(c.debug)),
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go func() {
		conn.err = conn.sm.RunContext(runCtx)
		close(conn.done)
	}()

	for {
		select {
		case <-ctx.Done():
			conn.stop()
			return goerr.Wrap(ctx.Err(), "login interrupted")

		case <-conn.done:
			conn.stop()
			return goerr.Wrap(conn.runErr(), "slack connection ended before it was established")

		case evt := <-conn.sm.Events:
			switch evt.Type {
			case socketmode.EventTypeConnected:
				c.mu.Lock()
				c.conn = conn
				c.mu.Unlock()

				ctxlog.From(ctx).Info("Connected to Slack")
				go c.watch(ctx, conn)
				c.startTyping(ctx)
				return nil

			case socketmode.EventTypeInvalidAuth:
				conn.stop()
				return goerr.New("slack rejected the app token")

			case socketmode.EventTypeConnectionError:
				conn.stop()
				if ce, ok := evt.Data.(*slack.ConnectionErrorEvent); ok && ce.ErrorObj != nil {
					return goerr.Wrap(ce.ErrorObj, "failed to connect to slack", goerr.V("attempt", ce.Attempt))
				}
				return goerr.New("failed to connect to slack")
			}
		}
	}
}

// watch follows the connection until it drops or is replaced
func (c *Client) watch(ctx context.Context, conn *connection) {
	logger := ctxlog.From(ctx)

	for {
		select {
		case <-conn.stopped:
			return

		case <-conn.done:
			c.dropped(conn, conn.runErr())
			return

		case evt := <-conn.sm.Events:
			switch evt.Type {
			// socketmode would redial on its own; the session owns reconnection instead
			case socketmode.EventTypeConnectionError,
				socketmode.EventTypeIncomingError,
				socketmode.EventTypeDisconnect,
				socketmode.EventTypeConnecting:
				c.dropped(conn, goerr.New("slack connection lost", goerr.V("event", string(evt.Type))))
				return

			case socketmode.EventTypeEventsAPI,
				socketmode.EventTypeInteractive,
				socketmode.EventTypeSlashCommand:
				// nothing is subscribed on purpose, acknowledge so Slack does not retry
				if evt.Request != nil {
					conn.sm.Ack(*evt.Request)
				}

			case socketmode.EventTypeHello:
				logger.Debug("Slack hello received")
			}
		}
	}
}

func (c *Client) dropped(conn *connection, cause error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.stop()

	if !current {
		return
	}
	select {
	case c.disconnected <- cause:
	default:
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	conn, rtm := c.conn, c.rtm
	c.conn, c.rtm = nil, nil
	c.mu.Unlock()

	if conn != nil {
		conn.stop()
	}
	if rtm != nil {
		rtm.stop()
	}
}

// Close terminates the current connection
func (c *Client) Close() {
	c.teardown()
}

// Disconnected signals connections that dropped without Close or a new Login
func (c *Client) Disconnected() <-chan error {
	return c.disconnected
}

// typingConn is the optional RTM connection used for typing indicators
type typingConn struct {
	rtm     *slack.RTM
	stopped chan struct{}
	once    sync.Once
}

func (t *typingConn) stop() {
	t.once.Do(func() {
		close(t.stopped)
		go func() {
			_ = t.rtm.Disconnect()
		}()
	})
}

// startTyping opens the RTM connection in the background; failures only disable typing
func (c *Client) startTyping(ctx context.Context) {
	if !c.typing {
		return
	}

	t := &typingConn{rtm: c.api.NewRTM(), stopped: make(chan struct{})}
	c.mu.Lock()
	c.rtm = t
	c.mu.Unlock()

	go t.rtm.ManageConnection()
	go func() {
		logger := ctxlog.From(ctx)
		for {
			select {
			case <-t.stopped:
				return
			case ev := <-t.rtm.IncomingEvents:
				if _, ok := ev.Data.(*slack.InvalidAuthEvent); ok {
					logger.Warn("Slack token cannot open RTM, typing indicator disabled")
					c.mu.Lock()
					if c.rtm == t {
						c.rtm = nil
					}
					c.mu.Unlock()
					t.stop()
					return
				}
			}
		}
	}()
}

// Channels lists public and private channels the bot can see
func (c *Client) Channels(ctx context.Context) ([]*model.Channel, error) {
	var channels []*model.Channel
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           channelPageSize,
		Types:           []string{"public_channel", "private_channel"},
	}

	for {
		page, cursor, err := c.api.GetConversationsContext(ctx, params)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list slack channels", goerr.V("cursor", params.Cursor))
		}
		for _, ch := range page {
			channels = append(channels, &model.Channel{ID: ch.ID, Name: ch.Name})
		}
		if cursor == "" {
			return channels, nil
		}
		params.Cursor = cursor
	}
}

// StartTyping shows the typing indicator in channelID. It does nothing when typing is disabled.
func (c *Client) StartTyping(ctx context.Context, channelID string) error {
	if !c.typing {
		return nil
	}

	c.mu.Lock()
	t := c.rtm
	c.mu.Unlock()

	if t == nil {
		return goerr.New("slack typing connection is not established", goerr.V("channel_id", channelID))
	}
	t.rtm.SendMessage(t.rtm.NewTypingMessage(channelID))
	return nil
}

// PostMessage posts text to channelID as plain text
func (c *Client) PostMessage(ctx context.Context, channelID, text string) error {
	_, ts, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post slack message", goerr.V("channel_id", channelID))
	}
	ctxlog.From(ctx).Debug("Posted slack message", "channel_id", channelID, "ts", ts)
	return nil
}

// StopTyping is a no-op: Slack clears the indicator when the bot's message arrives
func (c *Client) StopTyping(ctx context.Context, channelID string) error {
	return nil
}
