package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *Cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list <type>",
		Short: "List local records of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}

			entities, err := c.app.Data.List(cmd.Context(), entityType)
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", entityType, err)
			}

			if len(entities) == 0 {
				c.io.Printf("No %s records found.\n", entityType)
				c.io.Println()
				c.io.Printf("Use 'shelfsync add %s' to add your first one.\n", entityType)
				return nil
			}

			c.io.Printf("Found %d %s record(s):\n", len(entities), entityType)
			c.io.Println()
			for i, entity := range entities {
				c.io.Printf("%d. %s\n", i+1, summary(entity))
				c.io.Printf("   ID: %s\n", entity.EntityID())
			}
			return nil
		},
	}
}
