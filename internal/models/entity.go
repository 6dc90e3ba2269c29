package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EntityType identifies the kind of library record an operation refers to.
type EntityType string

// Closed set of entity types handled by the sync engine.
const (
	EntityBook       EntityType = "book"
	EntityRating     EntityType = "rating"
	EntityTag        EntityType = "tag"
	EntityCollection EntityType = "collection"
	EntityReadingLog EntityType = "readingLog"
)

// ErrUnknownEntityType is returned for entity types outside the closed set.
var ErrUnknownEntityType = errors.New("unknown entity type")

// AllEntityTypes returns the entity types in the order pulls are applied.
// Books go first so that ratings and logs referencing them land afterwards.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityBook, EntityTag, EntityCollection, EntityRating, EntityReadingLog}
}

// Valid reports whether t belongs to the closed set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityBook, EntityRating, EntityTag, EntityCollection, EntityReadingLog:
		return true
	default:
		return false
	}
}

// ParseEntityType converts user input into an EntityType.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityType, s)
	}
	return t, nil
}

// Entity is implemented by every payload variant that can travel through the queue.
type Entity interface {
	EntityType() EntityType
	EntityID() string
}

// Book is a book in the personal library.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
	Status string `json:"status,omitempty"` // want_to_read, reading, read
	Notes  string `json:"notes,omitempty"`
	Year   int    `json:"year,omitempty"`
}

func (b *Book) EntityType() EntityType { return EntityBook }
func (b *Book) EntityID() string       { return b.ID }

// Rating is a user's score for a book.
type Rating struct {
	ID     string `json:"id"`
	BookID string `json:"bookId"`
	Review string `json:"review,omitempty"`
	Score  int    `json:"score"` // 1..5
}

func (r *Rating) EntityType() EntityType { return EntityRating }
func (r *Rating) EntityID() string       { return r.ID }

// Tag is a free-form label.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

func (t *Tag) EntityType() EntityType { return EntityTag }
func (t *Tag) EntityID() string       { return t.ID }

// Collection groups books (shelves, reading lists).
type Collection struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	BookIDs     []string `json:"bookIds,omitempty"`
}

func (c *Collection) EntityType() EntityType { return EntityCollection }
func (c *Collection) EntityID() string       { return c.ID }

// ReadingLog records one reading session.
type ReadingLog struct {
	Date      time.Time `json:"date"`
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	Notes     string    `json:"notes,omitempty"`
	PagesRead int       `json:"pagesRead,omitempty"`
	Minutes   int       `json:"minutes,omitempty"`
}

func (l *ReadingLog) EntityType() EntityType { return EntityReadingLog }
func (l *ReadingLog) EntityID() string       { return l.ID }

// NewEntity returns an empty value of the variant for t.
func NewEntity(t EntityType) (Entity, error) {
	switch t {
	case EntityBook:
		return &Book{}, nil
	case EntityRating:
		return &Rating{}, nil
	case EntityTag:
		return &Tag{}, nil
	case EntityCollection:
		return &Collection{}, nil
	case EntityReadingLog:
		return &ReadingLog{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
	}
}

// DecodeEntity decodes raw JSON into the variant selected by t.
func DecodeEntity(t EntityType, raw []byte) (Entity, error) {
	entity, err := NewEntity(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("empty %s payload", t)
	}
	if err := json.Unmarshal(raw, entity); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", t, err)
	}
	return entity, nil
}

// ValidateEntity checks the per-variant invariants of an entity.
func ValidateEntity(e Entity) error {
	if e == nil {
		return fmt.Errorf("entity is nil")
	}
	if e.EntityID() == "" {
		return fmt.Errorf("%s id is required", e.EntityType())
	}

	switch v := e.(type) {
	case *Book:
		if v.Title == "" {
			return fmt.Errorf("book title is required")
		}
	case *Rating:
		if v.BookID == "" {
			return fmt.Errorf("rating bookId is required")
		}
		if v.Score < 1 || v.Score > 5 {
			return fmt.Errorf("rating score must be between 1 and 5, got %d", v.Score)
		}
	case *Tag:
		if v.Name == "" {
			return fmt.Errorf("tag name is required")
		}
	case *Collection:
		if v.Name == "" {
			return fmt.Errorf("collection name is required")
		}
	case *ReadingLog:
		if v.BookID == "" {
			return fmt.Errorf("reading log bookId is required")
		}
		if v.PagesRead < 0 || v.Minutes < 0 {
			return fmt.Errorf("reading log counters must not be negative")
		}
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEntityType, e)
	}

	return nil
}

// EntitiesEqual reports whether two entities are field-equal.
// Comparison goes through the canonical JSON encoding, so nil and empty
// slices (omitted fields) compare equal.
func EntitiesEqual(a, b Entity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.EntityType() != b.EntityType() {
		return false
	}
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// EntityKey is the storage and map key of an entity: "<type>/<id>".
func EntityKey(t EntityType, id string) string {
	return string(t) + "/" + id
}
