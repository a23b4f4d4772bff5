package source

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/site-autopilot/internal/models"
)

// Provider resolves the next unit of work for one source kind
type Provider interface {
	// Kind returns the source kind this provider serves
	Kind() models.SourceKind

	// Resolve returns the first unconsumed unit, or nil when the source is
	// empty. now is the cycle's evaluation instant; time-windowed sources
	// measure from it. It must not modify the site's cursors.
	Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error)
}

// UnitKey derives a stable identity for a unit so downstream workers can
// drop redelivered jobs
func UnitKey(siteID string, kind models.SourceKind, id string) string {
	data := fmt.Sprintf("%s:%s:%s", siteID, kind, id)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:16])
}
