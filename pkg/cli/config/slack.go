package config

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	slackinfra "github.com/m-mizutani/ghrelay/pkg/infra/slack"
	"github.com/m-mizutani/ghrelay/pkg/usecase"
)

// Slack holds chat destination configuration
type Slack struct {
	Token     string `masq:"secret"`
	AppToken  string `masq:"secret"`
	Channel   string
	SendRate  float64
	SendBurst int
	APIURL    string
	Debug     bool
	Typing    bool
}

// Flags returns CLI flags for Slack configuration
func (c *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-token",
			Usage:       "Slack bot token (xoxb-...)",
			Destination: &c.Token,
			Sources:     cli.EnvVars("GHRELAY_SLACK_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-app-token",
			Usage:       "Slack app-level token (xapp-...) with connections:write, used for Socket Mode",
			Destination: &c.AppToken,
			Sources:     cli.EnvVars("GHRELAY_SLACK_APP_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Name of the channel receiving notifications",
			Value:       "github",
			Destination: &c.Channel,
			Sources:     cli.EnvVars("GHRELAY_SLACK_CHANNEL"),
		},
		&cli.FloatFlag{
			Name:        "slack-send-rate",
			Usage:       "Messages per second sent to the channel, 0 for unlimited",
			Value:       1,
			Destination: &c.SendRate,
			Sources:     cli.EnvVars("GHRELAY_SLACK_SEND_RATE"),
		},
		&cli.IntFlag{
			Name:        "slack-send-burst",
			Usage:       "Messages that may be sent back to back before pacing applies",
			Value:       5,
			Destination: &c.SendBurst,
			Sources:     cli.EnvVars("GHRELAY_SLACK_SEND_BURST"),
		},
		&cli.StringFlag{
			Name:        "slack-api-url",
			Usage:       "Slack API base URL",
			Destination: &c.APIURL,
			Sources:     cli.EnvVars("GHRELAY_SLACK_API_URL"),
		},
		&cli.BoolFlag{
			Name:        "slack-typing",
			Usage:       "Show a typing indicator while posting (needs a classic bot token that can open RTM)",
			Destination: &c.Typing,
			Sources:     cli.EnvVars("GHRELAY_SLACK_TYPING"),
		},
		&cli.BoolFlag{
			Name:        "slack-debug",
			Usage:       "Enable Slack client debug output",
			Destination: &c.Debug,
			Sources:     cli.EnvVars("GHRELAY_SLACK_DEBUG"),
		},
	}
}

// Validate checks required values
func (c *Slack) Validate() error {
	if c.Token == "" {
		return goerr.New("slack-token is required")
	}
	if c.AppToken == "" {
		return goerr.New("slack-app-token is required")
	}
	if strings.TrimPrefix(c.Channel, "#") == "" {
		return goerr.New("slack-channel is required")
	}
	return nil
}

// NewClient builds the Slack client
func (c *Slack) NewClient() *slackinfra.Client {
	opts := []slackinfra.Option{
		slackinfra.WithDebug(c.Debug),
		slackinfra.WithTyping(c.Typing),
	}
	if c.APIURL != "" {
		opts = append(opts, slackinfra.WithAPIURL(c.APIURL))
	}
	return slackinfra.New(c.Token, c.AppToken, opts...)
}

// SenderOptions returns pacing options for the channel sender
func (c *Slack) SenderOptions() []usecase.SenderOption {
	return []usecase.SenderOption{usecase.WithSendRate(c.SendRate, c.SendBurst)}
}
