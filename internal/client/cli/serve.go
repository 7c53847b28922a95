package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/intercept"
)

const shutdownTimeout = 5 * time.Second

func (c *Cli) proxyCommand() *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve the application through the offline proxy",
		Long: `Run a reverse proxy in front of the application server. API writes that
cannot reach the server are queued and answered with 202, pages and assets
are served from the local cache, and queued operations are replayed in the
background once the server is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("listen") {
				c.cfg.Proxy.Listen = listen
			}
			return c.runProxy(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "proxy listen address")
	return cmd
}

func (c *Cli) runProxy(ctx context.Context) error {
	target, err := url.Parse(c.cfg.ProxyTarget())
	if err != nil {
		return fmt.Errorf("invalid proxy target: %w", err)
	}

	return c.withApp(ctx, func(app *App) error {
		pc := c.cfg.Proxy
		ic := intercept.New(http.DefaultTransport, app.queue, app.store, app.store, app.messages, intercept.Config{
			Classifier: intercept.ClassifierConfig{
				APIPrefix:       pc.APIPrefix,
				EntityTypes:     c.cfg.AllEntityTypes(),
				AssetPrefixes:   pc.AssetPrefixes,
				AssetExtensions: pc.AssetExtensions,
				PagePrefixes:    pc.PagePrefixes,
			},
			CacheGeneration:   pc.CacheGeneration,
			RevalidateTimeout: pc.RevalidateTimeout,
		}, c.logger)
		if err := ic.Start(ctx); err != nil {
			return err
		}
		defer ic.Wait()

		ln, err := net.Listen("tcp", pc.Listen)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", pc.Listen, err)
		}
		server := &http.Server{
			Handler:           intercept.NewProxy(target, ic, app.messages, c.logger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		c.logger.InfoContext(ctx, "Proxy started",
			"listen", ln.Addr().String(),
			"target", target.String(),
			"cache_generation", pc.CacheGeneration)
		c.io.Printf("Proxying http://%s -> %s\n", ln.Addr(), target)

		return c.serve(ctx, app, func(ctx context.Context) error {
			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Serve(ln)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				c.logger.Error("Proxy shutdown failed", "error", err)
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	})
}

func (c *Cli) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Replay queued operations in the background until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(app *App) error {
				c.io.Printf("Syncing with %s, press Ctrl+C to stop\n", c.cfg.Server)
				return c.serve(cmd.Context(), app, nil)
			})
		},
	}
}

// serve runs the coordinator, the event log and extra until ctx is done
func (c *Cli) serve(ctx context.Context, app *App, extra func(context.Context) error) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.coord.Run(ctx)
	})
	g.Go(func() error {
		c.logEvents(ctx, app.events)
		return nil
	})
	if extra != nil {
		g.Go(func() error {
			return extra(ctx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// logEvents writes engine events to the log until ctx is done
func (c *Cli) logEvents(ctx context.Context, events *bus.Bus[bus.Event]) {
	ch, unsubscribe := events.Subscribe(64)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			c.logEvent(ctx, ev)
		}
	}
}

func (c *Cli) logEvent(ctx context.Context, ev bus.Event) {
	attrs := []any{"kind", ev.Kind}
	if ev.EntityType != "" {
		attrs = append(attrs, "entity_type", ev.EntityType)
	}
	if ev.EntityID != "" {
		attrs = append(attrs, "entity_id", ev.EntityID)
	}
	if ev.OperationID != "" {
		attrs = append(attrs, "operation_id", ev.OperationID, "operation_type", ev.OperationType)
	}
	if ev.Detail != "" {
		attrs = append(attrs, "detail", ev.Detail)
	}

	switch ev.Kind {
	case bus.EventIDChanged:
		attrs = append(attrs, "old_id", ev.OldID, "new_id", ev.NewID)
	case bus.EventConnectivityChanged:
		attrs = append(attrs, "online", ev.Online)
	}

	switch ev.Kind {
	case bus.EventOperationFailed, bus.EventStorageDegraded, bus.EventReauthRequired:
		if ev.Err != nil {
			attrs = append(attrs, "error", ev.Err)
		}
		c.logger.WarnContext(ctx, "Engine event", attrs...)
	case bus.EventDrainStarted:
		c.logger.DebugContext(ctx, "Engine event", attrs...)
	default:
		c.logger.InfoContext(ctx, "Engine event", attrs...)
	}
}
