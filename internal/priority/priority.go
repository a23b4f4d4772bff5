// Package priority maps a subscription tier to a job queue priority.
// Lower values are served first.
package priority

import (
	"strings"

	"github.com/site-autopilot/internal/models"
)

const (
	Agency  = 1
	Pro     = 2
	Starter = 5
	Default = 10
)

// ForTier never fails: unknown or empty tiers get Default
func ForTier(tier string) int {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.TierAgency:
		return Agency
	case models.TierPro:
		return Pro
	case models.TierStarter:
		return Starter
	default:
		return Default
	}
}
