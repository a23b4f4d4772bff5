package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/site-autopilot/internal/recurrence"
	"github.com/site-autopilot/internal/storage/sqlite"
	"github.com/site-autopilot/pkg/logger"
)

// The replica never sees the scheduler's writes here, so every cycle would
// re-dispatch the same keyword if site rows came from it.
func TestLaggingReplicaDoesNotRedispatch(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	replica, err := sqlite.New(sqlite.Config{DSN: filepath.Join(dir, "replica.db")})
	require.NoError(t, err)
	require.NoError(t, replica.Migrate())
	t.Cleanup(func() { replica.Close() })

	repo, err := sqlite.New(sqlite.Config{
		DSN:        filepath.Join(dir, "primary.db"),
		ReplicaDSN: filepath.Join(dir, "replica.db"),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Migrate())
	t.Cleanup(func() { repo.Close() })

	require.NoError(t, replica.SaveSite(ctx, blogSite(jan1At0900)))
	require.NoError(t, repo.SaveSite(ctx, blogSite(jan1At0900)))

	c := &clock{t: jan1At0905}
	locks := newMemStore(c.Now)
	log := logger.Nop()
	loop := NewLoop(Config{Interval: time.Minute}, repo, locks, repo, testResolver(), recurrence.New(log), nil, log)
	loop.now = c.Now

	res := loop.RunCycle(ctx)
	assert.Equal(t, 1, res.Dispatched)

	c.Set(jan1At0905.Add(2 * time.Minute))
	res = loop.RunCycle(ctx)
	assert.False(t, res.Skipped)
	assert.Zero(t, res.Dispatched)

	jobs, err := repo.Peek(ctx, "blog-generation", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	site, err := repo.GetSite(ctx, "site-1")
	require.NoError(t, err)
	assert.Equal(t, jan2At0900.UnixMilli(), site.Blog.NextRunAt)
	assert.True(t, site.Keywords.Data()[1].Done)
}
