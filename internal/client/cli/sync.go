package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	syncmgr "github.com/iudanet/offsync/internal/client/sync"
)

func (c *Cli) syncCommand() *cobra.Command {
	var honorBackoff bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued operations now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSync(cmd.Context(), honorBackoff)
		},
	}
	cmd.Flags().BoolVar(&honorBackoff, "honor-backoff", false, "skip operations whose retry delay has not expired")
	return cmd
}

func (c *Cli) runSync(ctx context.Context, honorBackoff bool) error {
	return c.withApp(ctx, func(app *App) error {
		if !app.PingOnline(ctx) {
			return fmt.Errorf("server %s is unreachable, operations stay queued", c.cfg.Server)
		}

		opts := []syncmgr.DrainOption{syncmgr.WithReason("manual")}
		if !honorBackoff {
			opts = append(opts, syncmgr.WithIgnoreBackoff())
		}

		c.io.Println("Synchronizing...")
		res, err := app.sync.Drain(ctx, opts...)
		if errors.Is(err, syncmgr.ErrDrainInProgress) {
			c.io.Println("Another sync is already running.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		c.printResult(res)
		return nil
	})
}

func (c *Cli) queueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List queued operations in replay order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQueue(cmd.Context())
		},
	}
}

func (c *Cli) runQueue(ctx context.Context) error {
	return c.withApp(ctx, func(app *App) error {
		ops, err := app.queue.PeekAll(ctx)
		if err != nil {
			return fmt.Errorf("failed to read queue: %w", err)
		}
		if len(ops) == 0 {
			c.io.Println("Queue is empty.")
			return nil
		}

		w := tabwriter.NewWriter(c.io, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tTYPE\tENTITY\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
		for _, op := range ops {
			next := "-"
			if !op.NextAttemptAt.IsZero() {
				next = op.NextAttemptAt.Local().Format(timeLayout)
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
				op.Seq, op.Type, op.EntityKey(), op.Attempts, next, op.LastError)
		}
		return w.Flush()
	})
}
