package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadyReplacesClosedPool(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	conn := SetupTestDatabase(ctx, t).Conn

	old := conn.DB()
	db, err := conn.Ready(ctx)
	require.NoError(t, err)
	assert.Same(t, old, db, "a healthy pool is kept")

	sqlDB, err := old.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	db, err = conn.Ready(ctx)
	require.NoError(t, err)
	assert.NotSame(t, old, db)
	assert.Same(t, db, conn.DB())

	var one int
	require.NoError(t, conn.DB().WithContext(ctx).Raw("SELECT 1").Scan(&one).Error)
	assert.Equal(t, 1, one)
}
