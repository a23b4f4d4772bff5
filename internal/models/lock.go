package models

import "time"

// SchedulerLock is a named lease held by one scheduler instance until
// ExpiresAt. Expired rows may be taken over by anyone.
type SchedulerLock struct {
	LockKey   string    `gorm:"primaryKey;column:lock_key;size:100"`
	Owner     string    `gorm:"size:64;not null"`
	LockedAt  time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
}

func (SchedulerLock) TableName() string {
	return "scheduler_locks"
}
