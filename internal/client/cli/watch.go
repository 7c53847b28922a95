package cli

import (
	"context"
	"net/url"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iudanet/offsync/internal/client/bus"
	"github.com/iudanet/offsync/internal/client/intercept"
)

func (c *Cli) watchCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print messages streamed by a running proxy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Proxy.Listen
			}
			return c.runWatch(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "proxy", "p", "", "proxy address (default: proxy.listen)")
	return cmd
}

// runWatch doesn't open the database: the proxy holds its lock
func (c *Cli) runWatch(ctx context.Context, addr string) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: intercept.MessagesPath}

	messages := bus.New[bus.Message]()
	defer messages.Close()
	ch, unsubscribe := messages.Subscribe(64)
	defer unsubscribe()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return bus.Listen(ctx, u.String(), messages, c.logger)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-ch:
				c.printMessage(msg)
			}
		}
	})
	c.io.Printf("Watching %s, press Ctrl+C to stop\n", u.String())
	return g.Wait()
}

func (c *Cli) printMessage(msg bus.Message) {
	switch msg.Type {
	case bus.MessageOperationQueued:
		p, err := msg.OperationQueued()
		if err != nil {
			break
		}
		c.io.Printf("queued   %-6s %s/%s (%s)\n", p.OperationType, p.EntityType, p.EntityID, p.OperationID)
		return
	case bus.MessageSyncRequested:
		p, err := msg.SyncRequested()
		if err != nil {
			break
		}
		c.io.Printf("sync     %s\n", p.Reason)
		return
	}
	c.io.Printf("%s %s\n", msg.Type, msg.Payload)
}
