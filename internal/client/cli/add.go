package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/models"
)

func (c *Cli) addCommand() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Add a record locally and push it when the server is reachable",
		Long:  "Add a record. Types: " + entityTypeNames() + ". See 'shelfsync template <type>' for the JSON shape.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}
			raw, err := c.readData(data)
			if err != nil {
				return err
			}
			entity, err := models.DecodeEntity(entityType, raw)
			if err != nil {
				return err
			}

			op, err := c.app.Data.Create(cmd.Context(), entity)
			if err != nil {
				return fmt.Errorf("failed to add %s: %w", entityType, err)
			}

			c.io.Printf("✓ Added %s %s\n", entityType, op.EntityID)
			c.pushChange(cmd.Context())
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "record as JSON")
	return cmd
}

func (c *Cli) updateCommand() *cobra.Command {
	var data string

	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Change fields of a record",
		Long:  "Fields present in the JSON replace the stored ones; absent fields are kept.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}
			id := args[1]

			raw, err := c.readData(data)
			if err != nil {
				return err
			}

			entity, err := c.app.Data.Get(ctx, entityType, id)
			if err != nil {
				return fmt.Errorf("failed to get %s %s: %w", entityType, id, err)
			}
			// Поля из JSON накладываются на текущую версию записи
			if err := json.Unmarshal(raw, entity); err != nil {
				return fmt.Errorf("failed to decode %s: %w", entityType, err)
			}
			if entity.EntityID() != id {
				return fmt.Errorf("record id cannot be changed")
			}

			if _, err := c.app.Data.Update(ctx, entity); err != nil {
				return fmt.Errorf("failed to update %s %s: %w", entityType, id, err)
			}

			c.io.Printf("✓ Updated %s %s\n", entityType, id)
			c.pushChange(ctx)
			return nil
		},
	}
	cmd.Flags().StringVarP(&data, "data", "d", "", "changed fields as JSON")
	return cmd
}
