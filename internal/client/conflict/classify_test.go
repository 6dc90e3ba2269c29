package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iudanet/shelfsync/internal/models"
)

func TestClassify(t *testing.T) {
	dune := &models.Book{ID: "42", Title: "Dune"}
	duneCopy := &models.Book{ID: "42", Title: "Dune"}
	messiah := &models.Book{ID: "42", Title: "Dune Messiah"}

	tests := []struct {
		name   string
		local  *Version
		server *Version
		want   Classification
	}{
		{name: "nothing changed", want: NoConflict},
		{name: "local only", local: &Version{Entity: dune}, want: LocalOnly},
		{name: "server only", server: &Version{Entity: dune}, want: ServerOnly},
		{name: "equal fields", local: &Version{Entity: dune}, server: &Version{Entity: duneCopy}, want: NoConflict},
		{name: "both deleted", local: &Version{Deleted: true}, server: &Version{Deleted: true}, want: NoConflict},
		{name: "different fields", local: &Version{Entity: dune}, server: &Version{Entity: messiah}, want: Conflict},
		{name: "local delete vs server update", local: &Version{Deleted: true}, server: &Version{Entity: dune}, want: Conflict},
		{name: "local update vs tombstone", local: &Version{Entity: dune}, server: &Version{Deleted: true}, want: Conflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.local, tt.server)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestLocalVersion(t *testing.T) {
	assert.Nil(t, LocalVersion(nil))

	v := LocalVersion(&models.SyncOperation{Kind: models.OpDelete, EntityType: models.EntityBook, EntityID: "1"})
	assert.True(t, v.Deleted)
	assert.Nil(t, v.Entity)

	book := &models.Book{ID: "1", Title: "A"}
	v = LocalVersion(&models.SyncOperation{Kind: models.OpUpdate, EntityType: models.EntityBook, EntityID: "1", Payload: book})
	assert.False(t, v.Deleted)
	assert.Equal(t, book, v.Entity)
}
