package metrics

import (
	"testing"

	"github.com/kingdom-atlas/kvk-tracker/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temporary in-memory SQLite database for testing.
func setupTestDB(t *testing.T) (MetricsStore, func()) {
	t.Helper()

	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)

	return New(db), teardown
}

func TestIncrementAndGetAll(t *testing.T) {
	store, teardown := setupTestDB(t)
	defer teardown()

	// 1. Initially, there should be no metrics
	metrics, err := store.GetAll()
	require.NoError(t, err)
	assert.Empty(t, metrics)

	// 2. Increment a new key
	store.Increment("import_runs")
	metrics, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"import_runs": 1}, metrics)

	// 3. Increment the same key again
	store.Increment("import_runs")
	metrics, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"import_runs": 2}, metrics)

	// 4. Add a bulk value under a different key
	store.Add("rows_inserted", 50)
	store.Add("rows_inserted", 25)
	metrics, err = store.GetAll()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"import_runs":   2,
		"rows_inserted": 75,
	}, metrics)
}
