package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityType_Valid(t *testing.T) {
	for _, et := range AllEntityTypes() {
		assert.True(t, et.Valid(), et)
	}
	assert.False(t, EntityType("secret").Valid())
	assert.False(t, EntityType("").Valid())
}

func TestParseEntityType(t *testing.T) {
	et, err := ParseEntityType("readingLog")
	require.NoError(t, err)
	assert.Equal(t, EntityReadingLog, et)

	_, err = ParseEntityType("reading_log")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownEntityType))
}

func TestDecodeEntity(t *testing.T) {
	tests := []struct {
		name    string
		et      EntityType
		raw     string
		want    Entity
		wantErr bool
	}{
		{
			name: "book",
			et:   EntityBook,
			raw:  `{"id":"42","title":"Dune","author":"Frank Herbert","year":1965}`,
			want: &Book{ID: "42", Title: "Dune", Author: "Frank Herbert", Year: 1965},
		},
		{
			name: "rating",
			et:   EntityRating,
			raw:  `{"id":"r1","bookId":"42","score":5}`,
			want: &Rating{ID: "r1", BookID: "42", Score: 5},
		},
		{
			name: "collection",
			et:   EntityCollection,
			raw:  `{"id":"c1","name":"Sci-fi","bookIds":["42","43"]}`,
			want: &Collection{ID: "c1", Name: "Sci-fi", BookIDs: []string{"42", "43"}},
		},
		{
			name:    "unknown type",
			et:      EntityType("secret"),
			raw:     `{"id":"1"}`,
			wantErr: true,
		},
		{
			name:    "null payload",
			et:      EntityTag,
			raw:     `null`,
			wantErr: true,
		},
		{
			name:    "broken json",
			et:      EntityTag,
			raw:     `{"id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEntity(tt.et, []byte(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateEntity(t *testing.T) {
	tests := []struct {
		entity  Entity
		name    string
		wantErr bool
	}{
		{name: "valid book", entity: &Book{ID: "1", Title: "Dune"}},
		{name: "book without title", entity: &Book{ID: "1"}, wantErr: true},
		{name: "book without id", entity: &Book{Title: "Dune"}, wantErr: true},
		{name: "valid rating", entity: &Rating{ID: "r", BookID: "1", Score: 3}},
		{name: "rating out of range", entity: &Rating{ID: "r", BookID: "1", Score: 6}, wantErr: true},
		{name: "tag without name", entity: &Tag{ID: "t"}, wantErr: true},
		{name: "collection", entity: &Collection{ID: "c", Name: "Shelf"}},
		{name: "negative pages", entity: &ReadingLog{ID: "l", BookID: "1", PagesRead: -1}, wantErr: true},
		{name: "nil", entity: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntity(tt.entity)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEntitiesEqual(t *testing.T) {
	a := &Book{ID: "1", Title: "Dune"}
	b := &Book{ID: "1", Title: "Dune"}
	c := &Book{ID: "1", Title: "Dune Messiah"}

	assert.True(t, EntitiesEqual(a, b))
	assert.False(t, EntitiesEqual(a, c))
	assert.False(t, EntitiesEqual(a, nil))
	assert.True(t, EntitiesEqual(nil, nil))
	assert.False(t, EntitiesEqual(a, &Tag{ID: "1", Name: "Dune"}))

	// nil и пустой срез кодируются одинаково
	assert.True(t, EntitiesEqual(
		&Collection{ID: "c", Name: "x"},
		&Collection{ID: "c", Name: "x", BookIDs: []string{}},
	))
}

func TestSyncOperation_JSONRoundTripKeepsVariant(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC)
	op := SyncOperation{
		ID:         "op-1",
		Kind:       OpCreate,
		EntityType: EntityBook,
		EntityID:   "42",
		Payload:    &Book{ID: "42", Title: "Dune"},
		CreatedAt:  created,
	}

	data, err := json.Marshal(op)
	require.NoError(t, err)

	var decoded SyncOperation
	require.NoError(t, json.Unmarshal(data, &decoded))

	book, ok := decoded.Payload.(*Book)
	require.True(t, ok, "payload must decode into *Book")
	assert.Equal(t, "Dune", book.Title)
	assert.True(t, created.Equal(decoded.CreatedAt))

	del := SyncOperation{ID: "op-2", Kind: OpDelete, EntityType: EntityBook, EntityID: "42", CreatedAt: created}
	data, err = json.Marshal(del)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "payload")
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Payload)
}

func TestSyncOperation_Validate(t *testing.T) {
	book := &Book{ID: "42", Title: "Dune"}
	tests := []struct {
		op      SyncOperation
		name    string
		wantErr bool
	}{
		{name: "create", op: SyncOperation{ID: "1", Kind: OpCreate, EntityType: EntityBook, EntityID: "42", Payload: book}},
		{name: "delete", op: SyncOperation{ID: "1", Kind: OpDelete, EntityType: EntityBook, EntityID: "42"}},
		{name: "delete with payload", op: SyncOperation{ID: "1", Kind: OpDelete, EntityType: EntityBook, EntityID: "42", Payload: book}, wantErr: true},
		{name: "update without payload", op: SyncOperation{ID: "1", Kind: OpUpdate, EntityType: EntityBook, EntityID: "42"}, wantErr: true},
		{name: "id mismatch", op: SyncOperation{ID: "1", Kind: OpUpdate, EntityType: EntityBook, EntityID: "43", Payload: book}, wantErr: true},
		{name: "type mismatch", op: SyncOperation{ID: "1", Kind: OpUpdate, EntityType: EntityTag, EntityID: "42", Payload: book}, wantErr: true},
		{name: "unknown kind", op: SyncOperation{ID: "1", Kind: "upsert", EntityType: EntityBook, EntityID: "42", Payload: book}, wantErr: true},
		{name: "missing id", op: SyncOperation{Kind: OpDelete, EntityType: EntityBook, EntityID: "42"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidOperation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConflictRecord_JSONRoundTrip(t *testing.T) {
	rec := ConflictRecord{
		EntityType:    EntityBook,
		EntityID:      "1",
		LocalData:     &Book{ID: "1", Title: "Local"},
		ServerDeleted: true,
		DetectedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded ConflictRecord
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "Local", decoded.LocalData.(*Book).Title)
	assert.Nil(t, decoded.ServerData)
	assert.True(t, decoded.ServerDeleted)
	assert.Equal(t, "book/1", decoded.Key())
}

func TestParseResolutionStrategy(t *testing.T) {
	s, err := ParseResolutionStrategy("keep_server")
	require.NoError(t, err)
	assert.Equal(t, KeepServer, s)

	_, err = ParseResolutionStrategy("newest")
	assert.Error(t, err)
}
