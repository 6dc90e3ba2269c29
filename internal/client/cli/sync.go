package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	clientsync "github.com/iudanet/shelfsync/internal/client/sync"
	"github.com/iudanet/shelfsync/internal/models"
)

func (c *Cli) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued changes and pull server changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.io.Println("=== Sync ===")
			c.io.Println()

			res := c.app.Engine.RunCycle(cmd.Context(), clientsync.ReasonManual)
			c.printResult(res)

			if res.Err != nil {
				return res.Err
			}
			return nil
		},
	}
}

func (c *Cli) printResult(res *clientsync.Result) {
	if res.Skipped {
		c.io.Println("Another sync is already running.")
		return
	}

	c.io.Printf("Pushed:    %d (accepted %d, held %d)\n", res.Pushed, res.Accepted, res.Held)
	if res.Superseded > 0 {
		c.io.Printf("Already on server: %d operation(s)\n", res.Superseded)
	}
	c.io.Printf("Pulled:    %d (applied %d, deleted %d)\n", res.Pulled, res.Applied, res.Deleted)
	if res.ConflictsDetected > 0 {
		c.io.Printf("⚠️  Conflicts: %d. Run 'shelfsync conflicts' to review.\n", res.ConflictsDetected)
	}
	if res.Pruned > 0 {
		c.io.Printf("Pruned:    %d synced operation(s)\n", res.Pruned)
	}
	for _, r := range res.Rejected {
		c.io.Printf("✗ %v\n", r)
	}
	if res.PushErr != nil {
		c.io.Printf("⚠️  Push failed: %v\n", res.PushErr)
	}
	if res.Err == nil {
		c.io.Printf("✓ Checkpoint: %s\n", formatTime(res.Checkpoint))
	}
}

// pushChange запускает цикл сразу после локального изменения, если есть сессия
// и сервер отвечает. Иначе изменение остаётся в очереди.
func (c *Cli) pushChange(ctx context.Context) {
	const queued = "Queued for sync. Run 'shelfsync sync' to push it later."

	if c.offline {
		c.io.Println(queued)
		return
	}
	if _, err := c.app.Auth.Current(ctx); err != nil {
		c.io.Println(queued)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.app.Config.Sync.ProbeTimeout)
	err := c.app.Client.Probe(checkCtx)
	cancel()
	if err != nil {
		c.app.Logger.Debug("server unreachable, change stays queued", slog.Any("error", err))
		c.io.Println("Server unreachable. " + queued)
		return
	}

	c.app.Engine.SetOnline(ctx, true)
	res := c.app.Engine.RunCycle(ctx, clientsync.ReasonMutation)
	switch {
	case res.Skipped:
		c.io.Println(queued)
	case res.PushErr != nil:
		c.io.Printf("⚠️  Push failed: %v\n", res.PushErr)
		c.io.Println(queued)
	default:
		c.io.Printf("✓ Pushed to server (accepted %d)\n", res.Accepted)
	}
	for _, r := range res.Rejected {
		c.io.Printf("✗ %v\n", r)
	}
	if res.ConflictsDetected > 0 {
		c.io.Printf("⚠️  Conflicts: %d. Run 'shelfsync conflicts' to review.\n", res.ConflictsDetected)
	}
	if res.Err != nil {
		c.io.Printf("⚠️  %v\n", res.Err)
	}
}

func (c *Cli) queueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show operations waiting for the server and their rejections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pending, err := c.app.Queue.Pending(ctx)
			if err != nil {
				return fmt.Errorf("failed to list pending operations: %w", err)
			}
			rejections, err := c.app.Store.ListRejections(ctx)
			if err != nil {
				return fmt.Errorf("failed to list rejections: %w", err)
			}
			reasons := make(map[string]*models.Rejection, len(rejections))
			for _, r := range rejections {
				reasons[r.OperationID] = r
			}

			if len(pending) == 0 {
				c.io.Println("✓ All changes are synchronized.")
				return nil
			}

			c.io.Printf("Pending operations: %d\n", len(pending))
			c.io.Println()
			for i, op := range pending {
				c.io.Printf("%d. %s %s %s\n", i+1, op.Kind, op.EntityType, op.EntityID)
				c.io.Printf("   ID:      %s\n", op.ID)
				c.io.Printf("   Created: %s\n", op.CreatedAt.Format(time.RFC3339))
				if r, ok := reasons[op.ID]; ok {
					c.io.Printf("   Rejected %d time(s): %s\n", r.Count, r.Reason)
				}
			}
			return nil
		},
	}
}

func (c *Cli) conflictsCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "List unresolved conflicts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := c.app.Engine.PendingConflicts(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list conflicts: %w", err)
			}

			if output != outputText {
				return c.printStructured(output, records)
			}

			if len(records) == 0 {
				c.io.Println("No conflicts.")
				return nil
			}

			c.io.Printf("Found %d conflict(s):\n", len(records))
			c.io.Println()
			for i, r := range records {
				c.io.Printf("%d. %s %s\n", i+1, r.EntityType, r.EntityID)
				c.io.Printf("   Detected: %s\n", r.DetectedAt.Format(time.RFC3339))
				c.io.Printf("   Local:    %s\n", versionLabel(r.LocalData, r.LocalDeleted))
				c.io.Printf("   Server:   %s\n", versionLabel(r.ServerData, r.ServerDeleted))
			}
			c.io.Println()
			c.io.Println("Resolve with 'shelfsync resolve <type> <id> --strategy keep_local|keep_server|merge'.")
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func versionLabel(entity models.Entity, deleted bool) string {
	if deleted || entity == nil {
		return "deleted"
	}
	return summary(entity)
}

func (c *Cli) resolveCommand() *cobra.Command {
	var (
		strategy string
		data     string
	)

	cmd := &cobra.Command{
		Use:   "resolve <type> <id>",
		Short: "Resolve a conflict",
		Long: "Resolve a conflict with keep_local, keep_server or merge. For merge, --data " +
			"holds the fields that differ from the local version.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}
			id := args[1]

			s, err := models.ParseResolutionStrategy(strategy)
			if err != nil {
				return err
			}

			var merged models.Entity
			if s == models.Merge {
				merged, err = c.mergedEntity(cmd, entityType, id, data)
				if err != nil {
					return err
				}
			}

			outcome, err := c.app.Engine.Resolve(ctx, entityType, id, s, merged)
			if err != nil {
				return fmt.Errorf("failed to resolve %s %s: %w", entityType, id, err)
			}

			c.io.Printf("✓ Resolved %s %s with %s\n", entityType, id, outcome.Strategy)
			if outcome.Dropped > 0 {
				c.io.Printf("Discarded %d local operation(s)\n", outcome.Dropped)
			}
			if outcome.Operation != nil {
				c.pushChange(ctx)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "keep_local, keep_server or merge")
	cmd.Flags().StringVarP(&data, "data", "d", "", "merged fields as JSON")
	_ = cmd.MarkFlagRequired("strategy")
	return cmd
}

// mergedEntity накладывает --data на локальную версию из конфликта
func (c *Cli) mergedEntity(cmd *cobra.Command, entityType models.EntityType, id, data string) (models.Entity, error) {
	records, err := c.app.Engine.PendingConflicts(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to list conflicts: %w", err)
	}

	var base models.Entity
	for _, r := range records {
		if r.EntityType == entityType && r.EntityID == id {
			base = r.LocalData
			if base == nil {
				base = r.ServerData
			}
			break
		}
	}

	merged, err := models.NewEntity(entityType)
	if err != nil {
		return nil, err
	}
	if base != nil {
		raw, err := json.Marshal(base)
		if err != nil {
			return nil, fmt.Errorf("failed to copy local version: %w", err)
		}
		if err := json.Unmarshal(raw, merged); err != nil {
			return nil, fmt.Errorf("failed to copy local version: %w", err)
		}
	}

	raw, err := c.readData(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, merged); err != nil {
		return nil, fmt.Errorf("failed to decode merged %s: %w", entityType, err)
	}
	return merged, nil
}

func (c *Cli) pruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove synced operations from the local log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				olderThan = c.app.Config.Sync.Retention
			}

			n, err := c.app.Queue.Prune(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return fmt.Errorf("failed to prune: %w", err)
			}

			c.io.Printf("✓ Removed %d synced operation(s) older than %s\n", n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "age of synced operations to remove (default sync.retention)")
	return cmd
}
