package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
)

// Config holds database configuration
type Config struct {
	DSN string
	// ReplicaDSN, when set, picks the candidate IDs for each cycle. Rows are
	// still loaded from DSN.
	ReplicaDSN string
}

// Repository implements storage.Repository using SQLite
type Repository struct {
	db      *gorm.DB
	replica *gorm.DB
	now     func() time.Time
}

// New creates a new SQLite repository
func New(cfg Config) (*Repository, error) {
	db, err := open(cfg.DSN)
	if err != nil {
		return nil, err
	}

	repo := &Repository{db: db, now: time.Now}

	if cfg.ReplicaDSN != "" {
		replica, err := open(cfg.ReplicaDSN)
		if err != nil {
			_ = repo.Close()
			return nil, errors.Wrap(err, "failed to open read replica")
		}
		repo.replica = replica
	}

	return repo, nil
}

func open(dsn string) (*gorm.DB, error) {
	// Ensure directory exists
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if dir := filepath.Dir(path); dir != "." && dir != "" && !strings.Contains(path, ":memory:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create data directory")
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get sql handle")
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.Site{},
		&models.SchedulerLock{},
		&models.QueuedJob{},
	)
}

// Close closes the database connections
func (r *Repository) Close() error {
	var firstErr error
	for _, db := range []*gorm.DB{r.db, r.replica} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// candidateChunk keeps IN lists under sqlite's bound-variable limit
const candidateChunk = 500

// Tenant operations

// ListAutomationCandidates returns every site with a channel enabled. The
// replica only narrows the ID set: rows are always read from the primary so
// the evaluator never acts on a lagging next run or cursor.
func (r *Repository) ListAutomationCandidates(ctx context.Context) ([]*models.Site, error) {
	if r.replica == nil {
		var sites []*models.Site
		err := r.db.WithContext(ctx).
			Where(enabledClause()).
			Order("id ASC").
			Find(&sites).Error
		if err != nil {
			return nil, errors.Wrap(err, "failed to list automation candidates")
		}
		return sites, nil
	}

	var ids []string
	err := r.replica.WithContext(ctx).
		Model(&models.Site{}).
		Where(enabledClause()).
		Order("id ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list candidate ids from replica")
	}

	sites := make([]*models.Site, 0, len(ids))
	for start := 0; start < len(ids); start += candidateChunk {
		end := start + candidateChunk
		if end > len(ids) {
			end = len(ids)
		}

		var chunk []*models.Site
		err := r.db.WithContext(ctx).
			Where("id IN ?", ids[start:end]).
			Where(enabledClause()).
			Order("id ASC").
			Find(&chunk).Error
		if err != nil {
			return nil, errors.Wrap(err, "failed to load automation candidates")
		}
		sites = append(sites, chunk...)
	}
	return sites, nil
}

func (r *Repository) GetUserTier(ctx context.Context, userID string) (string, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Select("tier").Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", errors.Wrapf(errors.ErrNotFound, "user %s", userID)
		}
		return "", errors.Wrapf(err, "failed to get tier for user %s", userID)
	}
	return user.Tier, nil
}

func (r *Repository) UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error {
	if len(patch) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Site{}).Where("id = ?", id).Updates(patch)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "failed to update site %s", id)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "site %s", id)
	}
	return nil
}

// Site operations

func (r *Repository) GetSite(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "site %s", id)
		}
		return nil, err
	}
	return &site, nil
}

func (r *Repository) ListSites(ctx context.Context, filter storage.SiteFilter) ([]*models.Site, error) {
	var sites []*models.Site
	query := r.db.WithContext(ctx).Model(&models.Site{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.EnabledOnly {
		query = query.Where(enabledClause())
	}

	query = query.Order("id ASC")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (r *Repository) SaveSite(ctx context.Context, site *models.Site) error {
	return r.db.WithContext(ctx).Save(site).Error
}

// User operations

func (r *Repository) SaveUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

// enabledClause matches sites with any channel switched on
func enabledClause() string {
	cols := channel.EnabledColumns()
	for i, col := range cols {
		cols[i] = col + " = true"
	}
	return "(" + strings.Join(cols, " OR ") + ")"
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)
