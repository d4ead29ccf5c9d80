// Package authctl implements the operator CLI of the auth server: schema
// migrations, one-off purges of expired tokens, password hashing for seed
// data and offline inspection of session tokens.
package authctl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	OutputText = "text"
	OutputJSON = "json"
)

// Backend is the part of the server the database commands need.
type Backend interface {
	Migrate(ctx context.Context) error
	Purge(ctx context.Context) (services.PurgeResult, error)
	Close()
}

var newBackend = func(ctx context.Context, cfg *config.Config) (Backend, error) {
	return server.NewApp(ctx, cfg)
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "authctl",
		Usage:   "GophAuth administration tool",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			MigrateCommand(),
			PurgeCommand(),
			HashPasswordCommand(),
			InspectTokenCommand(),
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a JSON configuration file",
			EnvVars: []string{"GOPHAUTH_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: text, json",
			Value:   OutputText,
		},
	}
}

func loadConfig(c *cli.Context) *config.Config {
	return config.LoadConfigFrom(c.String("config"))
}

// render writes v as indented JSON, or calls text when the output format is
// text.
func render(c *cli.Context, v any, text func(w io.Writer) error) error {
	w := c.App.Writer
	switch c.String("output") {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case OutputText, "":
		return text(w)
	default:
		return fmt.Errorf("unknown output format %q", c.String("output"))
	}
}
