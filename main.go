// Command pair-relay pairs WebSocket clients two by two and relays their
// messages.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing /ws, the REST API and an /mcp endpoint
//  2. "mcp" – runs an MCP stdio server that proxies to a running relay's REST API
//
// Flags (or their environment variables, optionally from a .env file) control
// host/port, logging, WebSocket limits and optional ngrok tunneling for easy
// external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/pair-relay/api"
	"github.com/wricardo/pair-relay/config"
	"github.com/wricardo/pair-relay/logging"
	"github.com/wricardo/pair-relay/relay/dispatch"
	"github.com/wricardo/pair-relay/relay/room"
	"github.com/wricardo/pair-relay/transport/mcp"
	"github.com/wricardo/pair-relay/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Pair Relay"

	serviceName     = "pair-relay"
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// newCommand builds the CLI. Running it without a subcommand serves.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    serviceName,
		Usage:   "Pair WebSocket clients into rooms of two and relay their messages",
		Version: Version,
		Flags:   config.Flags(),
		Action:  runServe,
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "Run the HTTP server with WebSocket relay, REST API and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run an MCP stdio server proxying to the relay REST API at --api-url",
				Action:  runMCP,
			},
		},
	}
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig(cmd *cli.Command) (config.Config, zerolog.Logger, error) {
	cfg := config.FromCommand(cmd)
	if err := cfg.Validate(); err != nil {
		return cfg, zerolog.Nop(), err
	}
	// Stdout carries the MCP protocol in stdio mode, so logs go to stderr.
	log := logging.New(os.Stderr, serviceName, cfg.LogLevel(), cfg.LogFormat)
	return cfg, log, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr(), err)
	}

	log.Info().Str("version", Version).Str("mode", "serve").Msg("starting " + AppName)
	return newRelay(cfg, log).serve(ctx, listener)
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// The tools keep working once the relay comes up, so an unreachable API is
	// only a warning.
	probe := &http.Client{Timeout: 2 * time.Second}
	resp, err := probe.Get(cfg.APIURL + "/api/health")
	if err != nil {
		log.Warn().Err(err).Str("api", cfg.APIURL).Msg("relay API not reachable yet")
	} else {
		resp.Body.Close()
		log.Info().Str("api", cfg.APIURL).Msg("using relay API")
	}

	client := mcp.NewClient(cfg.APIURL)
	log.Info().Msg("MCP stdio server ready")
	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

// relay wires the registry, dispatcher, transport and HTTP surface together.
type relay struct {
	cfg        config.Config
	log        zerolog.Logger
	rooms      *room.Registry
	dispatcher *dispatch.Dispatcher
	sockets    *websocket.Handler
	api        *api.Server
}

func newRelay(cfg config.Config, log zerolog.Logger) *relay {
	rooms := room.NewRegistry()
	dispatcher := dispatch.New(rooms, log)
	sockets := websocket.NewHandler(dispatcher, cfg.WebSocket, log)

	return &relay{
		cfg:        cfg,
		log:        log,
		rooms:      rooms,
		dispatcher: dispatcher,
		sockets:    sockets,
		api:        api.NewServer(dispatcher, sockets, log),
	}
}

// mountMCP adds the /mcp endpoint, proxying tool calls to the API at baseURL.
func (r *relay) mountMCP(baseURL string) {
	mcpClient := mcp.NewClient(baseURL)

	r.api.Router().HandleFunc("/mcp", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer req.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(req.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// serve runs the HTTP server on listener and, when enabled, an ngrok tunnel,
// until ctx is cancelled. Live WebSocket clients are closed on the way out.
func (r *relay) serve(ctx context.Context, listener net.Listener) error {
	addr := listener.Addr().String()
	r.mountMCP("http://" + addr)

	httpServer := &http.Server{
		Handler:           r.api,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r.log.Info().
			Str("addr", addr).
			Str("websocket", "ws://"+addr+"/ws").
			Str("api", "http://"+addr+"/api").
			Str("mcp", "http://"+addr+"/mcp").
			Msg("HTTP server listening")

		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	if r.cfg.Ngrok.Enabled {
		g.Go(func() error {
			r.runTunnel(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		r.log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		// Shutdown does not track hijacked connections.
		r.sockets.Close()
		if err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	})

	err := g.Wait()
	r.log.Info().Int("active_rooms", r.rooms.Count()).Msg("server stopped")
	return err
}

// runTunnel serves the relay through ngrok until ctx is cancelled. Tunnel
// failures are logged and do not stop the local server.
func (r *relay) runTunnel(ctx context.Context) {
	var tunnel ngrokConfig.Tunnel
	if r.cfg.Ngrok.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(r.cfg.Ngrok.Domain))
		r.log.Info().Str("domain", r.cfg.Ngrok.Domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	r.log.Info().Msg("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(r.cfg.Ngrok.AuthToken))
	if err != nil {
		r.log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			r.log.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()

	url := tun.URL()
	r.log.Info().
		Str("url", url).
		Str("websocket", url+"/ws").
		Str("api", url+"/api").
		Msg("ngrok tunnel established")

	if err := http.Serve(tun, r.api); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		r.log.Error().Err(err).Msg("ngrok server error")
	}
	r.log.Info().Msg("ngrok tunnel closed")
}
