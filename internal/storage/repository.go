package storage

import (
	"context"
	"time"

	"github.com/site-autopilot/internal/models"
)

// TenantRepository is what the scheduler needs from tenant storage
type TenantRepository interface {
	// ListAutomationCandidates returns every site with at least one channel enabled
	ListAutomationCandidates(ctx context.Context) ([]*models.Site, error)

	// GetUserTier returns the owner's subscription tier
	GetUserTier(ctx context.Context, userID string) (string, error)

	// UpdateSite applies a column patch to one site
	UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error
}

// LockStore provides a best-effort lease. There is no release: the TTL is.
type LockStore interface {
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}

// Job is one unit handed to a channel queue
type Job struct {
	Name     string
	Payload  []byte
	Priority int
}

// JobQueue is the append-only side of the channel queues
type JobQueue interface {
	// Enqueue appends job to queue and returns its ID
	Enqueue(ctx context.Context, queue string, job Job) (string, error)
}

// Repository is the full persistence surface used by the service and CLI
type Repository interface {
	TenantRepository
	LockStore
	JobQueue

	// Site operations
	GetSite(ctx context.Context, id string) (*models.Site, error)
	ListSites(ctx context.Context, filter SiteFilter) ([]*models.Site, error)
	SaveSite(ctx context.Context, site *models.Site) error

	// User operations
	SaveUser(ctx context.Context, user *models.User) error

	// Queue inspection
	Peek(ctx context.Context, queue string, limit int) ([]*models.QueuedJob, error)

	// Maintenance
	Close() error
	Migrate() error
}

// SiteFilter defines filtering options for sites
type SiteFilter struct {
	UserID      string
	EnabledOnly bool
	Limit       int
	Offset      int
}

// DefaultSiteFilter returns a filter with sensible defaults
func DefaultSiteFilter() SiteFilter {
	return SiteFilter{Limit: 50}
}
