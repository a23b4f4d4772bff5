package scheduler

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/channel"
	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/storage"
	"github.com/site-autopilot/pkg/errors"
)

type queuedJob struct {
	Queue  string
	Job    storage.Job
	Record models.DispatchRecord
}

// memStore is an in-memory TenantRepository, LockStore and JobQueue
type memStore struct {
	mu      sync.Mutex
	sites   map[string]*models.Site
	order   []string
	tiers   map[string]string
	locks   map[string]time.Time
	jobs    []queuedJob
	patches []map[string]interface{}
	now     func() time.Time

	lockErr    error
	listErr    error
	tierErr    error
	enqueueErr error
	// updateErr is consulted for every patch; returning non-nil rejects it
	updateErr func(patch map[string]interface{}) error
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		sites: make(map[string]*models.Site),
		tiers: make(map[string]string),
		locks: make(map[string]time.Time),
		now:   now,
	}
}

func (m *memStore) addSite(s *models.Site) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sites[s.ID] = &cp
	m.order = append(m.order, s.ID)
}

func (m *memStore) site(id string) models.Site {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sites[id]
}

func (m *memStore) queued() []queuedJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]queuedJob(nil), m.jobs...)
}

func (m *memStore) ListAutomationCandidates(ctx context.Context) ([]*models.Site, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*models.Site, 0, len(m.order))
	for _, id := range m.order {
		s := *m.sites[id]
		if s.AnyChannelEnabled() {
			out = append(out, &s)
		}
	}
	return out, nil
}

func (m *memStore) GetUserTier(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tierErr != nil {
		return "", m.tierErr
	}
	tier, ok := m.tiers[userID]
	if !ok {
		return "", errors.ErrNotFound
	}
	return tier, nil
}

func (m *memStore) UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		if err := m.updateErr(patch); err != nil {
			return err
		}
	}
	s, ok := m.sites[id]
	if !ok {
		return errors.ErrNotFound
	}

	for col, val := range patch {
		switch col {
		case "keywords":
			s.Keywords = val.(datatypes.JSONType[[]models.Keyword])
		case "suggestions":
			s.Suggestions = val.(datatypes.JSONType[[]models.Suggestion])
		case "cursors":
			s.Cursors = val.(datatypes.JSONType[models.Cursors])
		default:
			kind, ok := strings.CutSuffix(col, "_next_run_at")
			if !ok {
				return errors.Newf("unexpected column %s", col)
			}
			ch, found := channel.Lookup(kind)
			if !found {
				return errors.Newf("unknown channel column %s", col)
			}
			ch.Settings(s).NextRunAt = val.(int64)
		}
	}
	m.patches = append(m.patches, patch)
	return nil
}

func (m *memStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockErr != nil {
		return false, m.lockErr
	}
	now := m.now()
	if exp, held := m.locks[key]; held && exp.After(now) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}

func (m *memStore) Enqueue(ctx context.Context, queue string, job storage.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueErr != nil {
		return "", m.enqueueErr
	}
	var rec models.DispatchRecord
	if err := json.Unmarshal(job.Payload, &rec); err != nil {
		return "", err
	}
	m.jobs = append(m.jobs, queuedJob{Queue: queue, Job: job, Record: rec})
	return rec.ID, nil
}

// clock is a settable time source shared by the store and loops
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type panicResolver struct{}

func (panicResolver) Resolve(ctx context.Context, site *models.Site, kind models.SourceKind, now time.Time) (*models.SourceUnit, error) {
	if site.ID == "explodes" {
		panic("provider bug")
	}
	return &models.SourceUnit{Kind: kind, Topic: "ok"}, nil
}
