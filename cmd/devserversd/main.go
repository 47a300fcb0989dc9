package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devservers/devserversd/internal/api"
	"github.com/devservers/devserversd/internal/apimetrics"
	"github.com/devservers/devserversd/internal/catalog"
	"github.com/devservers/devserversd/internal/compose"
	"github.com/devservers/devserversd/internal/orchestrator"
	"github.com/devservers/devserversd/internal/portregistry"
	"github.com/devservers/devserversd/internal/scaffold"
	"github.com/devservers/devserversd/internal/supervisor"
	"github.com/devservers/devserversd/internal/ux"
	cli "github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:        "devserversd",
		Usage:       "Local developer server orchestrator daemon",
		Description: "Serves the devservers HTTP and WebSocket API over loopback.",
		Commands: []*cli.Command{
			serveCmd(),
			initCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%serror:%s %v\n", ux.Red, ux.Reset, err)
		os.Exit(1)
	}
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the daemon and serve the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 4141, Usage: "TCP port to bind on loopback"},
			&cli.StringFlag{Name: "config", Usage: "Path to devservers.json (overrides DEVSERVERS_CONFIG and the OS default)"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log output format: text or json"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log, err := newLogger(cmd.String("log-format"))
			if err != nil {
				return err
			}

			configPath := cmd.String("config")
			if configPath == "" {
				configPath, err = catalog.DefaultPath()
				if err != nil {
					return fmt.Errorf("resolving config path: %w", err)
				}
			}
			registryPath := portregistry.DefaultPath(configPath)

			if _, err := catalog.Read(configPath); err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			sup := supervisor.New()
			if err := sup.EnsureSession(ctx); err != nil {
				return fmt.Errorf("ensuring tmux session: %w", err)
			}
			composeLoader := compose.New(log)

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			metrics := apimetrics.New()

			orch := orchestrator.New(orchestrator.Options{
				ConfigPath:   configPath,
				PortRegistry: registryPath,
				Supervisor:   sup,
				Compose:      composeLoader,
				Metrics:      metrics,
				Log:          log,
			})
			go orch.Run(runCtx)

			server := api.NewServer(&api.Server{
				ConfigPath:   configPath,
				PortRegistry: registryPath,
				Supervisor:   sup,
				Compose:      composeLoader,
				Orchestrator: orch,
				Metrics:      metrics,
				Log:          log,
			})

			addr := net.JoinHostPort("127.0.0.1", fmt.Sprintf("%d", cmd.Int("port")))
			httpServer := &http.Server{
				Addr:    addr,
				Handler: server.Router(),
			}

			sigCtx, stop := signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				ux.Banner(fmt.Sprintf("devserversd listening on %s", addr))
				log.Info("devserversd: listening", "addr", addr, "config", configPath)
				errCh <- httpServer.ListenAndServe()
			}()

			select {
			case <-sigCtx.Done():
				ux.Banner("devserversd shutting down")
				log.Info("devserversd: shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutting down HTTP server: %w", err)
				}
				composeLoader.Close()
				return nil
			case err := <-errCh:
				if err != nil && err != http.ErrServerClosed {
					return fmt.Errorf("serving: %w", err)
				}
				return nil
			}
		},
	}
}

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a starter devservers.json in the current directory",
		ArgsUsage: "[dir]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.Args().First()
			if dir == "" {
				dir = "."
			}
			return scaffold.Init(dir)
		},
	}
}

func newLogger(format string) (*slog.Logger, error) {
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, nil)), nil
	default:
		return nil, fmt.Errorf("unknown log-format %q (want text or json)", format)
	}
}
