package utils

import (
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenViewerIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := GenViewerID()
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate viewer id %s", id)
		seen[id] = true
	}
}

func TestGenConnIDParses(t *testing.T) {
	id := GenConnID()
	_, err := ulid.ParseStrict(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, GenConnID())
}
