package config

import (
	"time"

	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/ghrelay/pkg/domain/interfaces"
	"github.com/m-mizutani/ghrelay/pkg/infra/shortener"
)

// Shortener holds link shortener configuration
type Shortener struct {
	Endpoint string
	Timeout  time.Duration
}

// Flags returns CLI flags for shortener configuration
func (c *Shortener) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "shortener-endpoint",
			Usage:       "Link shortener endpoint, links are kept as is when empty",
			Destination: &c.Endpoint,
			Sources:     cli.EnvVars("GHRELAY_SHORTENER_ENDPOINT"),
		},
		&cli.DurationFlag{
			Name:        "shortener-timeout",
			Usage:       "Timeout of a single shortening call",
			Value:       5 * time.Second,
			Destination: &c.Timeout,
			Sources:     cli.EnvVars("GHRELAY_SHORTENER_TIMEOUT"),
		},
	}
}

// New builds the configured shortener
func (c *Shortener) New() interfaces.URLShortener {
	if c.Endpoint == "" {
		return shortener.Noop{}
	}
	return shortener.New(c.Endpoint, shortener.WithTimeout(c.Timeout))
}
