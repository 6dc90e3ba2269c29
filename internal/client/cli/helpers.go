package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/shelfsync/internal/models"
)

// Output formats of the --output flag
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func entityTypeNames() string {
	types := models.AllEntityTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, "|")
}

func parseEntityType(s string) (models.EntityType, error) {
	t, err := models.ParseEntityType(s)
	if err != nil {
		return "", fmt.Errorf("unknown record type %q, use one of: %s", s, entityTypeNames())
	}
	return t, nil
}

// readData returns the --data value or reads one line of JSON from the console
func (c *Cli) readData(data string) ([]byte, error) {
	if data != "" {
		return []byte(data), nil
	}
	line, err := c.io.ReadInput("JSON: ")
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}
	if line == "" {
		return nil, fmt.Errorf("record cannot be empty")
	}
	return []byte(line), nil
}

func addOutputFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", outputText, "output format: text, json or yaml")
}

// printStructured печатает v как JSON или YAML. YAML строится из JSON-представления,
// поэтому ключи совпадают в обоих форматах.
func (c *Cli) printStructured(format string, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	switch format {
	case outputJSON:
	case outputYAML:
		var generic any
		if err := json.Unmarshal(out, &generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		if out, err = yaml.Marshal(generic); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = c.io.Write(out)
		return err
	default:
		return fmt.Errorf("unknown output format %q, use text, json or yaml", format)
	}

	_, err = c.io.Write(append(out, '\n'))
	return err
}

// summary возвращает однострочное описание записи для list
func summary(entity models.Entity) string {
	switch e := entity.(type) {
	case *models.Book:
		if e.Author != "" {
			return fmt.Sprintf("%s by %s", e.Title, e.Author)
		}
		return e.Title
	case *models.Rating:
		return fmt.Sprintf("%d/5 for book %s", e.Score, e.BookID)
	case *models.Tag:
		return e.Name
	case *models.Collection:
		return fmt.Sprintf("%s (%d books)", e.Name, len(e.BookIDs))
	case *models.ReadingLog:
		return fmt.Sprintf("book %s on %s", e.BookID, e.Date.Format("2006-01-02"))
	default:
		return entity.EntityID()
	}
}
