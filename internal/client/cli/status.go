package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/client/auth"
)

func (c *Cli) statusCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show session and sync state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			status := c.app.Engine.Status(ctx)
			// Без демона монитор не запущен: считаем онлайн, если сервер отвечает
			status.IsOnline = c.app.Client.Probe(ctx) == nil

			if output != outputText {
				return c.printStructured(output, status)
			}

			c.io.Println("=== Status ===")
			c.io.Println()

			session, err := c.app.Auth.Current(ctx)
			switch {
			case errors.Is(err, auth.ErrNotLoggedIn):
				c.io.Println("Session: not logged in")
			case err != nil:
				return fmt.Errorf("failed to read session: %w", err)
			case session.Expired:
				c.io.Printf("Session: %s (expired, please login again)\n", session.Username)
			default:
				c.io.Printf("Session: %s\n", session.Username)
				if !session.ExpiresAt.IsZero() {
					c.io.Printf("Token expires: %s\n", session.ExpiresAt.Format(time.RFC3339))
				}
			}

			c.io.Printf("Server:     %s (%s)\n", c.app.Config.ServerURL, onlineLabel(status.IsOnline))
			c.io.Printf("Checkpoint: %s\n", formatTime(status.Checkpoint))
			c.io.Printf("Pending operations:  %d\n", status.PendingOperationCount)
			c.io.Printf("Rejected operations: %d\n", status.RejectedOperations)
			c.io.Printf("Pending conflicts:   %d\n", status.PendingConflicts)

			if status.PendingOperationCount > 0 {
				c.io.Println()
				c.io.Println("Run 'shelfsync sync' to synchronize with server.")
			}
			if status.PendingConflicts > 0 {
				c.io.Println("Run 'shelfsync conflicts' to review conflicts.")
			}
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func onlineLabel(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
