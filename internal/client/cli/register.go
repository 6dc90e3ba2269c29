package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/client/auth"
)

func (c *Cli) registerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "register [username]",
		Short: "Create an account on the server",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.io.Println("=== Registration ===")
			c.io.Println()

			username, err := c.usernameArg(args)
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password (min 8 chars): ", true)
			if err != nil {
				return err
			}

			userID, err := c.app.Auth.Register(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			c.io.Println("✓ Registration successful!")
			c.io.Printf("User ID:  %s\n", userID)
			c.io.Printf("Username: %s\n", username)
			c.io.Println()
			c.io.Println("Please run 'shelfsync login' to start syncing.")
			return nil
		},
	}
}

func (c *Cli) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in and store the access token locally",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, err := c.usernameArg(args)
			if err != nil {
				return err
			}
			password, err := c.readPassword("Password: ", false)
			if err != nil {
				return err
			}

			authData, err := c.app.Auth.Login(cmd.Context(), username, password)
			if err != nil {
				return err
			}

			c.io.Printf("✓ Logged in as %s\n", authData.Username)
			if authData.ExpiresAt > 0 {
				c.io.Printf("Token expires: %s\n", time.Unix(authData.ExpiresAt, 0).Format(time.RFC3339))
			}
			return nil
		},
	}
}

func (c *Cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session; local data and the queue are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.app.Auth.Logout(cmd.Context()); err != nil {
				if errors.Is(err, auth.ErrNotLoggedIn) {
					c.io.Println("Not logged in.")
					return nil
				}
				return fmt.Errorf("logout failed: %w", err)
			}
			c.io.Println("✓ Logged out")
			return nil
		},
	}
}
