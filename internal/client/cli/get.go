package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *Cli) getCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}

			entity, err := c.app.Data.Get(cmd.Context(), entityType, args[1])
			if err != nil {
				return fmt.Errorf("failed to get %s %s: %w", entityType, args[1], err)
			}

			if output != outputText {
				return c.printStructured(output, entity)
			}
			return renderEntity(c.io, entity)
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}
