// Command pinclient is a terminal client for a pinshare server.
//
//	pinclient share --name Alice            # open a session and stream a random walk
//	pinclient watch 482913                  # follow a session by PIN
//
// Both subcommands take --server (default ws://localhost:3000/ws).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/share/protocol"
)

var errSessionRejected = errors.New("session rejected")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pinclient: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "pinclient",
		Usage: "share or watch a live location over a pinshare server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Value:   "ws://localhost:3000/ws",
				Usage:   "websocket endpoint of the server",
				Sources: cli.EnvVars("PINSHARE_SERVER"),
			},
			&cli.BoolFlag{Name: "debug", Usage: "enable debug logging"},
			&cli.BoolFlag{Name: "no-color", Usage: "disable colored log output"},
		},
		Commands: []*cli.Command{
			{
				Name:  "share",
				Usage: "open a session and stream simulated positions",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "display name shown to viewers"},
					&cli.StringFlag{Name: "avatar", Usage: "avatar shown to viewers"},
					&cli.FloatFlag{Name: "lat", Value: 48.8566, Usage: "starting latitude"},
					&cli.FloatFlag{Name: "lng", Value: 2.3522, Usage: "starting longitude"},
					&cli.DurationFlag{Name: "interval", Value: 2 * time.Second, Usage: "time between updates"},
					&cli.IntFlag{Name: "count", Usage: "stop after this many updates (0 runs until interrupted)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					conn, log, err := connect(ctx, cmd)
					if err != nil {
						return err
					}
					defer conn.Close()

					return share(ctx, conn, shareOptions{
						Name:     cmd.String("name"),
						Avatar:   cmd.String("avatar"),
						Lat:      cmd.Float("lat"),
						Lng:      cmd.Float("lng"),
						Interval: cmd.Duration("interval"),
						Count:    cmd.Int("count"),
					}, out, log)
				},
			},
			{
				Name:      "watch",
				Usage:     "join a session and print every position received",
				ArgsUsage: "PIN",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					pin := cmd.Args().First()
					if pin == "" {
						return fmt.Errorf("a PIN is required")
					}

					conn, log, err := connect(ctx, cmd)
					if err != nil {
						return err
					}
					defer conn.Close()

					return watch(ctx, conn, pin, out, log)
				},
			},
		},
	}
}

func connect(ctx context.Context, cmd *cli.Command) (*websocket.Conn, zerolog.Logger, error) {
	log := logging.New(logging.Options{
		Debug:   cmd.Bool("debug"),
		Console: true,
		NoColor: cmd.Bool("no-color"),
	})

	url := cmd.String("server")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, log, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	log.Debug().Str("server", url).Msg("connected")
	return conn, log, nil
}

type shareOptions struct {
	Name     string
	Avatar   string
	Lat      float64
	Lng      float64
	Interval time.Duration
	Count    int
}

// share creates a session and sends a random walk until ctx ends or Count
// updates were sent.
func share(ctx context.Context, conn *websocket.Conn, opts shareOptions, out io.Writer, log zerolog.Logger) error {
	if err := conn.WriteJSON(protocol.NewCreateFrame(opts.Name, opts.Avatar)); err != nil {
		return fmt.Errorf("failed to send create: %w", err)
	}

	var pin protocol.PinMessage
	if err := conn.ReadJSON(&pin); err != nil {
		return fmt.Errorf("failed to read pin: %w", err)
	}
	if pin.Type != protocol.TypePin {
		return fmt.Errorf("%w: unexpected %q reply", errSessionRejected, pin.Type)
	}

	expires := time.UnixMilli(pin.ExpiresAt)
	fmt.Fprintf(out, "PIN %s (expires %s)\n", pin.PIN, expires.Format("15:04:05"))

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	lat, lng := opts.Lat, opts.Lng
	for sent := 0; opts.Count == 0 || sent < opts.Count; sent++ {
		update := protocol.NewLocationFrame(pin.PIN, lat, lng)
		if err := conn.WriteJSON(update); err != nil {
			return fmt.Errorf("failed to send location: %w", err)
		}
		log.Debug().Float64("lat", lat).Float64("lng", lng).Msg("location sent")

		if !time.Now().Before(expires) {
			fmt.Fprintln(out, "session expired")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		// Roughly ten metres per step.
		lat += (rand.Float64() - 0.5) * 0.0002
		lng += (rand.Float64() - 0.5) * 0.0002
	}
	return nil
}

// watch joins pin and prints every location received until the connection
// closes or ctx ends.
func watch(ctx context.Context, conn *websocket.Conn, pin string, out io.Writer, log zerolog.Logger) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(protocol.NewJoinFrame(pin)); err != nil {
		return fmt.Errorf("failed to send join: %w", err)
	}

	for {
		var msg struct {
			Type   string          `json:"type"`
			Msg    string          `json:"msg"`
			Sharer protocol.Sharer `json:"sharer"`
			Lat    float64         `json:"lat"`
			Lng    float64         `json:"lng"`
			Name   string          `json:"name"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		}

		switch msg.Type {
		case protocol.TypeError:
			return fmt.Errorf("%w: %s", errSessionRejected, msg.Msg)
		case protocol.TypeSuccess:
			fmt.Fprintf(out, "watching %s\n", msg.Sharer.Name)
		case protocol.TypeLocation:
			fmt.Fprintf(out, "%s %s %.6f,%.6f\n", time.Now().Format("15:04:05"), msg.Name, msg.Lat, msg.Lng)
		default:
			log.Debug().Str("type", msg.Type).Msg("ignoring message")
		}
	}
}
