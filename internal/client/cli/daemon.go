package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/client/app"
	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
)

func (c *Cli) daemonCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Sync in the background until interrupted",
		Long: "Probe the server, sync on reconnect and on every sync.interval. " +
			"The local database is opened only while a cycle runs, so other commands " +
			"can be used meanwhile. Stops on SIGINT or SIGTERM after the running cycle finishes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Хранилище открывается только на время цикла, остальные команды работают параллельно
			a := c.app
			if err := a.ReleaseStore(); err != nil {
				return fmt.Errorf("failed to release local store: %w", err)
			}

			runner := app.NewDetached(a.Config, a.Logger.With(slog.String("component", "daemon")), func(st clientsync.Status) {
				a.Logger.Info("sync status",
					slog.Int("pending", st.PendingOperationCount),
					slog.Int("conflicts", st.PendingConflicts),
					slog.Int("rejected", st.RejectedOperations),
					slog.String("last_error", st.LastError))
				if st.LastError != "" {
					c.io.Printf("✗ Sync failed: %s\n", st.LastError)
					return
				}
				c.io.Printf("✓ Synced at %s, pending %d, conflicts %d\n",
					formatTime(st.LastSyncTime), st.PendingOperationCount, st.PendingConflicts)
			})
			mon := runner.Monitor()

			unsubscribeOnline := mon.Subscribe(func(online bool) {
				c.io.Printf("Server is %s\n", onlineLabel(online))
			})
			defer unsubscribeOnline()

			c.io.Printf("Syncing with %s every %s. Press Ctrl+C to stop.\n",
				a.Config.ServerURL, a.Config.Sync.Interval)
			return mon.Run(ctx)
		},
	}
}
