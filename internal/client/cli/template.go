package cli

import (
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/spf13/cobra"

	"github.com/iudanet/shelfsync/internal/models"
)

const bookTemplate = `
=== Book ===

Title:  {{.Title}}
ID:     {{.ID}}
{{- if .Author }}
Author: {{.Author}}
{{- end}}
{{- if .Year }}
Year:   {{.Year}}
{{- end}}
{{- if .ISBN }}
ISBN:   {{.ISBN}}
{{- end}}
{{- if .Status }}
Status: {{.Status}}
{{- end}}
{{- if .Notes }}
Notes:  {{.Notes}}
{{- end}}
`

const ratingTemplate = `
=== Rating ===

ID:     {{.ID}}
Book:   {{.BookID}}
Score:  {{.Score}}/5
{{- if .Review }}
Review: {{.Review}}
{{- end}}
`

const tagTemplate = `
=== Tag ===

Name:  {{.Name}}
ID:    {{.ID}}
{{- if .Color }}
Color: {{.Color}}
{{- end}}
`

const collectionTemplate = `
=== Collection ===

Name:  {{.Name}}
ID:    {{.ID}}
{{- if .Description }}
About: {{.Description}}
{{- end}}
Books: {{len .BookIDs}}
{{- range .BookIDs }}
  - {{.}}
{{- end}}
`

const readingLogTemplate = `
=== Reading Log ===

ID:      {{.ID}}
Book:    {{.BookID}}
Date:    {{.Date.Format "2006-01-02"}}
{{- if .PagesRead }}
Pages:   {{.PagesRead}}
{{- end}}
{{- if .Minutes }}
Minutes: {{.Minutes}}
{{- end}}
{{- if .Notes }}
Notes:   {{.Notes}}
{{- end}}
`

var entityTemplates = map[models.EntityType]*template.Template{
	models.EntityBook:       template.Must(template.New("book").Parse(bookTemplate)),
	models.EntityRating:     template.Must(template.New("rating").Parse(ratingTemplate)),
	models.EntityTag:        template.Must(template.New("tag").Parse(tagTemplate)),
	models.EntityCollection: template.Must(template.New("collection").Parse(collectionTemplate)),
	models.EntityReadingLog: template.Must(template.New("readingLog").Parse(readingLogTemplate)),
}

// renderEntity печатает карточку записи
func renderEntity(w io.Writer, entity models.Entity) error {
	tmpl, ok := entityTemplates[entity.EntityType()]
	if !ok {
		return fmt.Errorf("no template for %s", entity.EntityType())
	}
	return tmpl.Execute(w, entity)
}

// exampleEntity returns a filled-in record used by the template command
func exampleEntity(t models.EntityType) models.Entity {
	switch t {
	case models.EntityBook:
		return &models.Book{Title: "Dune", Author: "Frank Herbert", Year: 1965, Status: "want_to_read"}
	case models.EntityRating:
		return &models.Rating{BookID: "<book id>", Score: 5, Review: "A classic"}
	case models.EntityTag:
		return &models.Tag{Name: "sci-fi", Color: "#3366ff"}
	case models.EntityCollection:
		return &models.Collection{Name: "Summer", Description: "Beach reading", BookIDs: []string{"<book id>"}}
	case models.EntityReadingLog:
		return &models.ReadingLog{BookID: "<book id>", Date: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), PagesRead: 42, Minutes: 60}
	default:
		return nil
	}
}

func (c *Cli) templateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "template <type>",
		Short: "Print an example record for add --data",
		Args:  cobra.ExactArgs(1),
		// Локальное хранилище не нужно
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(_ *cobra.Command, args []string) error {
			entityType, err := parseEntityType(args[0])
			if err != nil {
				return err
			}
			return c.printStructured(outputJSON, exampleEntity(entityType))
		},
	}
}
