package database_test

import (
	"testing"

	"design-portal-backend/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending(t *testing.T) {
	names, err := database.Pending()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_documents.sql", names[0])
	assert.IsIncreasing(t, names)
}
