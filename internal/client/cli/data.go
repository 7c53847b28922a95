package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/offsync/internal/client/data"
	"github.com/iudanet/offsync/internal/models"
)

const payloadHelp = "PAYLOAD is a JSON object, or @path to read it from a file."

func (c *Cli) createCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create TYPE PAYLOAD",
		Short: "Create an entity; queued when offline",
		Long:  "Create an entity. The entity gets a temporary id until the server acknowledges it.\n\n" + payloadHelp,
		Example: `  offsync create orders '{"item":"p-1","qty":2}'
  offsync create products @product.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args[1])
			if err != nil {
				return err
			}
			return c.withOnlineApp(cmd.Context(), func(app *App) error {
				res, err := app.data.Create(cmd.Context(), args[0], payload)
				if err != nil {
					return err
				}
				c.printWrite("Created", args[0], res)
				return nil
			})
		},
	}
}

func (c *Cli) updateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "update TYPE ID PAYLOAD",
		Short: "Replace an entity; queued when offline",
		Long:  "Replace an entity. " + payloadHelp,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(args[2])
			if err != nil {
				return err
			}
			return c.withOnlineApp(cmd.Context(), func(app *App) error {
				res, err := app.data.Update(cmd.Context(), args[0], args[1], payload)
				if err != nil {
					return err
				}
				c.printWrite("Updated", args[0], res)
				return nil
			})
		},
	}
}

func (c *Cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TYPE ID",
		Short: "Delete an entity; queued when offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withOnlineApp(cmd.Context(), func(app *App) error {
				res, err := app.data.Delete(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				switch {
				case models.IsTempID(args[1]):
					c.io.Printf("✓ Deleted %s/%s before it reached the server (%d queued operation(s) cancelled)\n",
						args[0], args[1], res.Cancelled)
				case res.Queued:
					c.io.Printf("✓ Deleted %s/%s locally, queued as %s\n", args[0], args[1], res.OperationID)
				default:
					c.io.Printf("✓ Deleted %s/%s\n", args[0], args[1])
				}
				return nil
			})
		},
	}
}

func (c *Cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get TYPE ID",
		Short: "Show an entity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withOnlineApp(cmd.Context(), func(app *App) error {
				rec, err := app.data.Get(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				return c.render("record", recordTemplate, rec)
			})
		},
	}
}

func (c *Cli) listCommand() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "list TYPE",
		Short: "List local entities of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return c.withOnlineApp(ctx, func(app *App) error {
				if refresh {
					n, err := app.data.Refresh(ctx, args[0])
					if err != nil {
						// локальная копия все равно показывается
						c.io.Printf("⚠️  Refresh failed: %v\n", err)
					} else if n > 0 {
						c.io.Printf("Refreshed %d record(s) from server\n", n)
					}
				}

				recs, err := app.data.List(ctx, args[0])
				if err != nil {
					return err
				}
				return c.render("list", recordListTemplate, struct {
					EntityType string
					Records    []*models.Record
				}{args[0], recs})
			})
		},
	}
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "pull the server state first")
	return cmd
}

// withOnlineApp opens the engine and pings the server once, so writes go
// straight out when it is reachable
func (c *Cli) withOnlineApp(ctx context.Context, fn func(*App) error) error {
	return c.withApp(ctx, func(app *App) error {
		app.PingOnline(ctx)
		return fn(app)
	})
}

func (c *Cli) printWrite(verb, entityType string, res *data.Result) {
	id := res.Record.ID
	if res.Queued {
		c.io.Printf("✓ %s %s/%s locally, queued as %s\n", verb, entityType, id, res.OperationID)
		return
	}
	c.io.Printf("✓ %s %s/%s\n", verb, entityType, id)
}

// readPayload returns the argument, or the file contents for @path
func readPayload(arg string) (json.RawMessage, error) {
	raw := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload: %w", err)
		}
		raw = b
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
