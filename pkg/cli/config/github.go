package config

import (
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub configuration
type GitHub struct {
	WebhookSecret string `masq:"secret"`
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Destination: &c.WebhookSecret,
			Sources:     cli.EnvVars("GHRELAY_GITHUB_WEBHOOK_SECRET"),
		},
	}
}

// Validate checks required values
func (c *GitHub) Validate() error {
	if c.WebhookSecret == "" {
		return goerr.New("github-webhook-secret is required")
	}
	return nil
}
