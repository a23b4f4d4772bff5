package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/site-autopilot/pkg/errors"
)

func TestSetIfAbsent(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	ok, err := repo.SetIfAbsent(ctx, "automation-scheduler", "instance-a", 55*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.SetIfAbsent(ctx, "automation-scheduler", "instance-b", 55*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "held lease must not be taken")

	// a different key is independent
	ok, err = repo.SetIfAbsent(ctx, "other", "instance-b", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	holder, err := repo.LockHolder(ctx, "automation-scheduler")
	require.NoError(t, err)
	assert.Equal(t, "instance-a", holder.Owner)
}

func TestSetIfAbsentTakesOverExpired(t *testing.T) {
	repo := createTestRepo(t)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	ok, err := repo.SetIfAbsent(ctx, "automation-scheduler", "instance-a", 55*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(54 * time.Second)
	ok, err = repo.SetIfAbsent(ctx, "automation-scheduler", "instance-b", 55*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, err = repo.SetIfAbsent(ctx, "automation-scheduler", "instance-b", 55*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	holder, err := repo.LockHolder(ctx, "automation-scheduler")
	require.NoError(t, err)
	assert.Equal(t, "instance-b", holder.Owner)
}

func TestLockHolderMissing(t *testing.T) {
	repo := createTestRepo(t)
	_, err := repo.LockHolder(context.Background(), "nobody")
	assert.True(t, errors.IsNotFound(err))
}
