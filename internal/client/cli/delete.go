package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *Cli) deleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a record locally and queue the deletion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}
			id := args[1]

			if !force {
				answer, err := c.io.ReadInput(fmt.Sprintf("Delete %s %s? [y/N]: ", entityType, id))
				if err != nil {
					return fmt.Errorf("failed to read confirmation: %w", err)
				}
				if answer != "y" && answer != "Y" && answer != "yes" {
					c.io.Println("Cancelled.")
					return nil
				}
			}

			if _, err := c.app.Data.Delete(cmd.Context(), entityType, id); err != nil {
				return fmt.Errorf("failed to delete %s %s: %w", entityType, id, err)
			}

			c.io.Printf("✓ Deleted %s %s\n", entityType, id)
			c.pushChange(cmd.Context())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "do not ask for confirmation")
	return cmd
}
