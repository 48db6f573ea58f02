package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/watch"
	"github.com/felixgeelhaar/stepwise/internal/infrastructure/wiring"
	"github.com/felixgeelhaar/stepwise/pkg/infrastructure/web"
	"github.com/felixgeelhaar/stepwise/pkg/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser view and the JSON API",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := loadServices(cmd)
		if err != nil {
			return MapError(err)
		}
		defer services.Close()

		addr := services.Workspace.Config.Server.Addr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}

		server, err := web.NewServer(web.Config{
			Addr:      addr,
			Store:     services.Store,
			Generator: services.Generation,
			Webhook:   services.Relay.Handler(),
			Events:    services.Events,
			Logger:    slog.Default(),
		})
		if err != nil {
			return err
		}

		watcher, err := newSlotWatcher(services)
		if err != nil {
			slog.Warn("not following task file changes", "error", err)
		}

		if services.Notifier == nil {
			slog.Warn("no webhook url configured, completion notifications are disabled")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving on http://%s (provider %s)\n", addr, services.Generation.ProviderID())
		var follower backgroundTask
		if watcher != nil {
			follower = watcher
		}
		return runServer(cmd.Context(), server, follower)
	},
}

// newSlotWatcher follows the file slot so task changes made by other
// stepwise commands reach open browsers. Nil for other backends.
func newSlotWatcher(services *wiring.AppServices) (*watch.SlotWatcher, error) {
	slot, ok := services.Workspace.Slot.(*storage.FileSlot)
	if !ok {
		return nil, nil
	}
	if err := storage.Initialize(slot.Root()); err != nil {
		return nil, err
	}
	path, err := slot.Path()
	if err != nil {
		return nil, err
	}

	store := services.Store
	return watch.NewSlotWatcher(path, 0, func(ctx context.Context) {
		if _, err := store.Reload(ctx); err != nil {
			slog.Warn("reload task list", "error", err)
		}
	}, slog.Default())
}

// backgroundTask is an optional helper that runs alongside the HTTP server.
type backgroundTask interface {
	Run(ctx context.Context) error
}

func runServer(ctx context.Context, server *web.Server, watcher backgroundTask) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var g run.Group

	// OS signals.
	{
		signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
		defer signalCancel()

		g.Add(
			func() error {
				<-signalCtx.Done()
				slog.Debug("termination signal received")
				return nil
			},
			func(_ error) {
				signalCancel()
			},
		)
	}

	// HTTP server.
	{
		g.Add(
			func() error {
				return server.Start()
			},
			func(_ error) {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
					slog.Error("server shutdown failed", "error", err)
				}
			},
		)
	}

	// Task file watcher. Live reload is optional, so its exit never stops
	// the group.
	if watcher != nil {
		watchCtx, watchCancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				if err := watcher.Run(watchCtx); err != nil {
					slog.Warn("task file watcher stopped, live reload disabled", "error", err)
				}
				<-watchCtx.Done()
				return nil
			},
			func(_ error) {
				watchCancel()
			},
		)
	}

	return g.Run()
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to server.addr from config)")
	RootCmd.AddCommand(serveCmd)
}
