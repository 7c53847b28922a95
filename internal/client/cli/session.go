package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/offsync/internal/client/auth"
	syncmgr "github.com/iudanet/offsync/internal/client/sync"
	"github.com/iudanet/offsync/internal/validation"
	"github.com/iudanet/offsync/pkg/api"
)

func (c *Cli) registerCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRegister(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func (c *Cli) runRegister(ctx context.Context, username string) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	username, password, err := c.readCredentials(username)
	if err != nil {
		return err
	}
	// текст ошибки начинается с имени поля: "invalid username: ..."
	if err := validation.ValidateAccount(username, password); err != nil {
		return fmt.Errorf("invalid %w", err)
	}

	// Подтверждение пароля
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	return c.withApp(ctx, func(app *App) error {
		resp, err := app.api.Register(ctx, api.RegisterRequest{Username: username, Password: password})
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		c.io.Println()
		c.io.Println("✓ Registration successful!")
		c.io.Printf("User ID: %s\n", resp.UserID)
		c.io.Println()
		c.io.Println("Run 'offsync login' to start a session.")
		return nil
	})
}

func (c *Cli) loginCommand() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and replay queued operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLogin(cmd.Context(), username)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func (c *Cli) runLogin(ctx context.Context, username string) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	username, password, err := c.readCredentials(username)
	if err != nil {
		return err
	}

	return c.withApp(ctx, func(app *App) error {
		creds, err := app.session.Login(ctx, username, password)
		if err != nil {
			return err
		}

		c.io.Println()
		c.io.Println("✓ Login successful!")
		c.io.Printf("Username: %s\n", creds.Username)
		c.io.Printf("Access token expires: %s\n", creds.AccessExpiresAt.Format(timeLayout))

		// Очередь, накопленная до логина, уходит сразу
		pending, err := app.queue.Len(ctx)
		if err != nil || pending == 0 {
			return err
		}
		c.io.Printf("\nReplaying %d queued operation(s)...\n", pending)
		res, err := app.sync.Drain(ctx, syncmgr.WithIgnoreBackoff(), syncmgr.WithReason("login"))
		if err != nil {
			c.io.Printf("⚠️  Sync failed: %v\n", err)
			return nil
		}
		c.printResult(res)
		return nil
	})
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session; queued operations are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLogout(cmd.Context())
		},
	}
}

func (c *Cli) runLogout(ctx context.Context) error {
	return c.withApp(ctx, func(app *App) error {
		if _, err := app.session.Current(ctx); errors.Is(err, auth.ErrNotAuthenticated) {
			c.io.Println("Not logged in.")
			return nil
		}

		if err := app.session.Logout(ctx); err != nil {
			return err
		}
		c.io.Println("✓ Logged out")

		pending, err := app.queue.Len(ctx)
		if err != nil {
			return err
		}
		if pending > 0 {
			c.io.Printf("⚠️  %d operation(s) stay queued until the next login.\n", pending)
		}
		return nil
	})
}

// readCredentials prompts for whatever was not passed as a flag
func (c *Cli) readCredentials(username string) (string, string, error) {
	if username == "" {
		var err error
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return "", "", fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return "", "", fmt.Errorf("failed to read password: %w", err)
	}
	return username, password, nil
}
