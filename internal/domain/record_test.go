package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProjectWithoutOwner(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 30, 0, 123456789, time.UTC)
	doc := Document{
		ID:        "p-1",
		Fields:    map[string]string{"name": "X", "status": "active"},
		CreatedAt: created,
		UpdatedAt: created,
	}

	rec := Normalize(ProjectsSchema, doc)
	owner, ok := rec.Get("ownerEmail")
	require.True(t, ok)
	assert.Nil(t, owner)

	body, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"p-1","name":"X","ownerEmail":null,"status":"active","createdAt":"2024-03-01T10:30:00.123Z","updatedAt":"2024-03-01T10:30:00.123Z"}`,
		string(body))
}

func TestNormalizeUserKeyOrder(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	rec := Normalize(UsersSchema, Document{
		ID:        "u-1",
		Fields:    map[string]string{"email": "ada@example.com", "name": "Ada"},
		CreatedAt: ts,
		UpdatedAt: ts,
	})

	body, err := json.Marshal([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t,
		`[{"id":"u-1","name":"Ada","email":"ada@example.com","createdAt":"2024-01-02T02:04:05.000Z","updatedAt":"2024-01-02T02:04:05.000Z"}]`,
		string(body))
}

func TestNormalizeAllKeepsOrder(t *testing.T) {
	docs := []Document{{ID: "b"}, {ID: "a"}}
	recs := NormalizeAll(UsersSchema, docs)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].ID)
	assert.Equal(t, "a", recs[1].ID)
}

func TestStoreTime(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 999999999, time.FixedZone("x", -7200))
	got := StoreTime(ts)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 999000000, got.Nanosecond())
}
