package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/offsync/internal/client/auth"
	"github.com/iudanet/offsync/internal/client/connectivity"
	"github.com/iudanet/offsync/internal/models"
)

type statusView struct {
	AccessExpiresAt time.Time
	LastSync        time.Time
	Server          string
	Username        string
	Session         connectivity.SessionState
	Reconciliations []*models.Reconciliation
	Pending         int
	Online          bool
}

func (c *Cli) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, network and queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runStatus(cmd.Context())
		},
	}
}

func (c *Cli) runStatus(ctx context.Context) error {
	return c.withApp(ctx, func(app *App) error {
		view := statusView{
			Server: c.cfg.Server,
			Online: app.PingOnline(ctx),
		}

		creds, err := app.session.Current(ctx)
		switch {
		case errors.Is(err, auth.ErrNotAuthenticated):
		case err != nil:
			return fmt.Errorf("failed to load session: %w", err)
		default:
			view.Username = creds.Username
			view.AccessExpiresAt = creds.AccessExpiresAt
			view.Session = sessionState(creds, time.Now())
		}

		if view.Pending, err = app.queue.Len(ctx); err != nil {
			return fmt.Errorf("failed to count pending operations: %w", err)
		}
		if view.LastSync, err = app.lastSync(ctx); err != nil {
			// Не прерываем выполнение, просто логируем
			c.logger.WarnContext(ctx, "Failed to read last sync time", "error", err)
		}
		if view.Reconciliations, err = app.store.ListReconciliations(ctx); err != nil {
			return fmt.Errorf("failed to list reconciliations: %w", err)
		}

		return c.render("status", statusTemplate, view)
	})
}

// sessionState derives the session state of a one-shot process
func sessionState(creds *models.Credentials, now time.Time) connectivity.SessionState {
	switch {
	case creds.AccessValid(now):
		return connectivity.SessionValid
	case creds.RefreshValid(now):
		return connectivity.SessionGrace
	default:
		return connectivity.SessionReauth
	}
}
