package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// File holds the path of an optional TOML configuration file
type File struct {
	Path string
}

// Flags returns CLI flags for the configuration file
func (c *File) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "TOML configuration file",
			Destination: &c.Path,
			Sources:     cli.EnvVars("GHRELAY_CONFIG"),
		},
	}
}

// LoadFile reads a TOML file into flag name / value pairs. Tables are joined
// to their keys with "-", so [slack] channel = "x" is the slack-channel flag.
func LoadFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	var doc map[string]any
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", path))
	}

	values := make(map[string]any)
	flatten("", doc, values)
	return values, nil
}

func flatten(prefix string, src map[string]any, dst map[string]any) {
	for key, value := range src {
		name := key
		if prefix != "" {
			name = prefix + "-" + key
		}
		if table, ok := value.(map[string]any); ok {
			flatten(name, table, dst)
			continue
		}
		dst[name] = value
	}
}

// Apply sets flags of cmd that were given neither on the command line nor in the
// environment from the configuration file. It does nothing without a path.
func (c *File) Apply(cmd *cli.Command) error {
	if c.Path == "" {
		return nil
	}

	values, err := LoadFile(c.Path)
	if err != nil {
		return err
	}

	known := make(map[string]bool)
	for _, flag := range cmd.Flags {
		for _, name := range flag.Names() {
			known[name] = true
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !known[name] {
			return goerr.New("unknown key in config file", goerr.V("key", name), goerr.V("path", c.Path))
		}
		if name == "config" || cmd.IsSet(name) {
			continue
		}

		for _, v := range flagValues(values[name]) {
			if err := cmd.Set(name, v); err != nil {
				return goerr.Wrap(err, "invalid value in config file", goerr.V("key", name))
			}
		}
	}
	return nil
}

func flagValues(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return []string{strings.TrimSpace(fmt.Sprint(v))}
	}
}
