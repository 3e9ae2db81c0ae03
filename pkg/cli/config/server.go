package config

import (
	"net/netip"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// GitHubHookRanges are the published source ranges of GitHub webhook deliveries
var GitHubHookRanges = []string{
	"192.30.252.0/22",
	"185.199.108.0/22",
	"140.82.112.0/20",
	"143.55.64.0/20",
}

// Server holds server configuration
type Server struct {
	Addr         string
	WebhookPath  string
	AllowedCIDRs []string
	TrustProxy   bool
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:9080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("GHRELAY_ADDR"),
		},
		&cli.StringFlag{
			Name:        "webhook-path",
			Usage:       "Path receiving GitHub webhook deliveries",
			Value:       "/github",
			Destination: &c.WebhookPath,
			Sources:     cli.EnvVars("GHRELAY_WEBHOOK_PATH"),
		},
		&cli.StringSliceFlag{
			Name:        "allowed-cidr",
			Usage:       "Source ranges allowed to deliver webhooks, \"none\" disables the check",
			Value:       GitHubHookRanges,
			Destination: &c.AllowedCIDRs,
			Sources:     cli.EnvVars("GHRELAY_ALLOWED_CIDR"),
		},
		&cli.BoolFlag{
			Name:        "trust-proxy",
			Usage:       "Take the client address from X-Forwarded-For / X-Real-IP",
			Destination: &c.TrustProxy,
			Sources:     cli.EnvVars("GHRELAY_TRUST_PROXY"),
		},
	}
}

// Prefixes parses AllowedCIDRs. A single "none" entry yields no restriction.
func (c *Server) Prefixes() ([]netip.Prefix, error) {
	if len(c.AllowedCIDRs) == 1 && c.AllowedCIDRs[0] == "none" {
		return nil, nil
	}

	prefixes := make([]netip.Prefix, 0, len(c.AllowedCIDRs))
	for _, cidr := range c.AllowedCIDRs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid allowed CIDR", goerr.V("cidr", cidr))
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes, nil
}
