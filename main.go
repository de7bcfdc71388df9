// Command pinshare starts the PIN paired location sharing server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the /ws sharing endpoint,
//     health, metrics, the optional admin API and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP server
//     if none is available
//
// Settings come from config.yaml (see share/config), PINSHARE_* environment
// variables and finally the flags below. ngrok tunneling is available for
// easy external access during development.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/share/config"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "PinShare Server"
)

// main loads .env, parses flags and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand()
	cmd.Before = func(ctx context.Context, c *cli.Command) (context.Context, error) {
		if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
		}
		return ctx, nil
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.Name, err)
		os.Exit(1)
	}
}

// newCommand builds the command tree. Flags are shared by every mode.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "pinshare",
		Usage:   AppName,
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a config file (default: config.yaml in . or ./configs)",
				Sources: cli.EnvVars("PINSHARE_CONFIG"),
			},
			&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP server port"},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "console", Usage: "human readable logs instead of JSON"},
			&cli.BoolFlag{Name: "admin", Usage: "enable the session admin API and MCP endpoint"},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:    "server",
				Aliases: []string{"http"},
				Usage:   "run the HTTP server with websocket, API and MCP endpoint (default)",
				Action:  runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server backed by the admin API",
				Action:  runStdioMCP,
			},
		},
	}
}

// settingsFromCommand loads the config file and applies flag overrides.
func settingsFromCommand(cmd *cli.Command) (*config.Settings, error) {
	settings, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if cmd.IsSet("host") {
		settings.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		settings.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("debug") {
		settings.Log.Debug = cmd.Bool("debug")
	}
	if cmd.IsSet("console") {
		settings.Log.Console = cmd.Bool("console")
	}
	if cmd.IsSet("admin") {
		settings.Admin.Enabled = cmd.Bool("admin")
	}
	if cmd.IsSet("ngrok") {
		settings.Ngrok.Enabled = cmd.Bool("ngrok")
	}
	if cmd.IsSet("ngrok-auth") {
		settings.Ngrok.AuthToken = cmd.String("ngrok-auth")
	}
	if cmd.IsSet("ngrok-domain") {
		settings.Ngrok.Domain = cmd.String("ngrok-domain")
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

func newLogger(settings *config.Settings) zerolog.Logger {
	return logging.New(logging.Options{
		Debug:   settings.Log.Debug,
		Console: settings.Log.Console,
		NoColor: settings.Log.NoColor,
	})
}
