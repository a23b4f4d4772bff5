package source

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

// Resolver dispatches resolution to the provider registered for a kind.
// Provider failures never escape: they are logged and reported as empty.
type Resolver struct {
	providers map[models.SourceKind]Provider
	log       *logger.Logger
	mu        sync.RWMutex
}

// NewResolver creates a resolver with the given providers
func NewResolver(log *logger.Logger, providers ...Provider) *Resolver {
	r := &Resolver{
		providers: make(map[models.SourceKind]Provider, len(providers)),
		log:       log.WithComponent("source-resolver"),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for p.Kind()
func (r *Resolver) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Kind()] = p
}

// Kinds lists the registered source kinds
func (r *Resolver) Kinds() []models.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]models.SourceKind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Resolve returns the next unit for kind, or nil when nothing is pending.
// now is the cycle's evaluation instant. The only error returned is
// cancellation of ctx.
func (r *Resolver) Resolve(ctx context.Context, site *models.Site, kind models.SourceKind, now time.Time) (*models.SourceUnit, error) {
	r.mu.RLock()
	p, ok := r.providers[kind]
	r.mu.RUnlock()

	log := r.log.WithSite(site.ID)
	if !ok {
		log.Warn().
			Err(errors.ErrUnsupportedSource).
			Str("source_kind", string(kind)).
			Msg("No provider for source kind, treating as empty")
		return nil, nil
	}

	unit, err := p.Resolve(ctx, site, now)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		event := log.Warn()
		if errors.IsNotAuthorized(err) {
			event = log.Info()
		}
		event.Err(err).Str("source_kind", string(kind)).Msg("Source resolution failed, treating as empty")
		return nil, nil
	}

	if unit != nil && unit.Kind == "" {
		unit.Kind = kind
	}
	return unit, nil
}
