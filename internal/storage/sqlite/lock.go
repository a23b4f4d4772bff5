package sqlite

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/pkg/errors"
)

// SetIfAbsent takes the named lease for ttl unless an unexpired holder
// exists. Expired leases are taken over.
func (r *Repository) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := r.now().UTC()
	acquired := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("lock_key = ? AND expires_at <= ?", key, now).
			Delete(&models.SchedulerLock{}).Error; err != nil {
			return err
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.SchedulerLock{
			LockKey:   key,
			Owner:     value,
			LockedAt:  now,
			ExpiresAt: now.Add(ttl),
		})
		if res.Error != nil {
			return res.Error
		}
		acquired = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(err, "failed to acquire lock %s", key)
	}

	return acquired, nil
}

// LockHolder returns the current lease for key, or ErrNotFound
func (r *Repository) LockHolder(ctx context.Context, key string) (*models.SchedulerLock, error) {
	var lock models.SchedulerLock
	if err := r.db.WithContext(ctx).Where("lock_key = ?", key).First(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(errors.ErrNotFound, "lock %s", key)
		}
		return nil, err
	}
	return &lock, nil
}
