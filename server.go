package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"github.com/wricardo/pinshare/api"
	"github.com/wricardo/pinshare/logging"
	"github.com/wricardo/pinshare/metrics"
	"github.com/wricardo/pinshare/share/config"
	"github.com/wricardo/pinshare/share/service"
	"github.com/wricardo/pinshare/share/session"
	"github.com/wricardo/pinshare/transport/mcp"
	"github.com/wricardo/pinshare/transport/websocket"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
)

// app holds the wired components of one server process.
type app struct {
	settings *config.Settings
	log      zerolog.Logger

	registry *session.Registry
	sweeper  *session.Sweeper
	pairing  service.PairingService
	hub      *websocket.Hub
}

func newApp(settings *config.Settings, log zerolog.Logger) *app {
	registry := session.NewRegistry(
		session.WithTTL(settings.Session.TTL),
		session.WithDefaultName(settings.Session.DefaultName),
		session.WithLogger(log),
	)
	pairing := service.NewPairingService(registry, log)

	return &app{
		settings: settings,
		log:      log,
		registry: registry,
		sweeper:  session.NewSweeper(registry, settings.Session.SweepInterval, log),
		pairing:  pairing,
		hub: websocket.NewHub(pairing, log,
			websocket.WithSendBuffer(settings.Transport.SendBuffer),
			websocket.WithMaxMessageSize(settings.Transport.MaxMessageSize),
			websocket.WithAllowedOrigins(settings.Transport.AllowedOrigins),
		),
	}
}

// start runs the hub and the sweeper until ctx is cancelled.
func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	a.sweeper.Start(ctx)
}

func (a *app) stop() {
	a.sweeper.Stop()
}

// handler builds the HTTP surface. When selfURL is set and the admin API is
// enabled, /mcp proxies to the admin routes at that address.
func (a *app) handler(selfURL string) http.Handler {
	opts := []api.Option{
		api.WithLogger(a.log),
		api.WithAdmin(a.settings.Admin.Enabled),
		api.WithStaticDir(a.settings.Server.StaticDir),
	}
	if !a.settings.Metrics.Disabled {
		opts = append(opts, api.WithMetrics(metrics.Handler()))
	}
	if a.settings.Admin.Enabled && selfURL != "" {
		opts = append(opts, api.WithMCP(mcp.NewClient(selfURL).HTTPHandler()))
	}
	return api.NewServer(a.pairing, a.hub, opts...)
}

// runServer starts the HTTP server and, if enabled, an ngrok tunnel. It
// returns after a graceful shutdown once ctx is cancelled.
func runServer(ctx context.Context, cmd *cli.Command) error {
	settings, err := settingsFromCommand(cmd)
	if err != nil {
		return err
	}
	log := newLogger(settings)
	addr := settings.Addr()

	log.Info().Str("version", Version).Str("mode", "server").Msg("starting " + AppName)

	a := newApp(settings, log)
	a.start(ctx)
	defer a.stop()

	handler := a.handler("http://" + addr)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
		IdleTimeout:  settings.Server.IdleTimeout,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	// Start regular HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("websocket", fmt.Sprintf("ws://%s/ws", addr)).
			Bool("admin", settings.Admin.Enabled).
			Bool("metrics", !settings.Metrics.Disabled).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if settings.Ngrok.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, settings.Ngrok, handler, log)
		}()
	}

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err = <-serveErr:
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
	defer shutdownCancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is cancelled.
func runNgrok(ctx context.Context, settings config.Ngrok, handler http.Handler, log zerolog.Logger) {
	log = logging.Component(log, "ngrok")

	if settings.AuthToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or ngrok.auth_token)")
		return
	}

	// Configure ngrok endpoint
	var tunnel ngrokConfig.Tunnel
	if settings.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(settings.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(settings.AuthToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	log.Info().
		Str("url", tun.URL()).
		Str("websocket", tun.URL()+"/ws").
		Msg("ngrok tunnel established")

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// runStdioMCP runs an MCP stdio server. It reuses a server already listening
// on the configured address when that server answers /health; otherwise it
// starts an internal one on a random loopback port with the admin API on.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	settings, err := settingsFromCommand(cmd)
	if err != nil {
		return err
	}
	log := newLogger(settings)

	externalURL := "http://" + settings.Addr()
	baseURL := externalURL
	log.Info().Str("url", externalURL).Msg("checking for external server")

	if !probe(ctx, externalURL) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		settings.Admin.Enabled = true
		a := newApp(settings, log)
		a.start(ctx)
		defer a.stop()

		internal := &http.Server{Handler: a.handler("")}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer internal.Close()

		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (using internal HTTP server)")
	} else {
		log.Info().Str("url", baseURL).Msg("MCP stdio server ready (using external HTTP server)")
	}

	if err := mcpserver.ServeStdio(mcp.NewClient(baseURL).GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// probe reports whether a pinshare server answers at baseURL.
func probe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
