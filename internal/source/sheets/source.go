// Package sheets serves the spreadsheet_column source kind from Google Sheets.
package sheets

import (
	"context"
	"strconv"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/internal/source"
	"github.com/site-autopilot/pkg/logger"
)

// CredentialStore persists a renewed Google credential
type CredentialStore interface {
	UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error
}

// Source returns the first non-blank cell whose row is not yet processed
type Source struct {
	fetcher Fetcher
	store   CredentialStore
	log     *logger.Logger
}

// New creates the spreadsheet_column provider. store may be nil, in which
// case renewed tokens are only kept for the current cycle.
func New(fetcher Fetcher, store CredentialStore, log *logger.Logger) *Source {
	return &Source{
		fetcher: fetcher,
		store:   store,
		log:     log.WithSource(string(models.SourceSheet), "google-sheets"),
	}
}

// Kind returns spreadsheet_column
func (s *Source) Kind() models.SourceKind {
	return models.SourceSheet
}

// Resolve is empty, without error, when the site never connected Google
func (s *Source) Resolve(ctx context.Context, site *models.Site, now time.Time) (*models.SourceUnit, error) {
	cred := site.GoogleCredential.Data()
	if !cred.Connected() {
		s.log.Debug().Str("site_id", site.ID).Msg("No Google credential, nothing to read")
		return nil, nil
	}

	sheet := site.Sheet.Data()
	if sheet.SpreadsheetID == "" || sheet.Range == "" {
		return nil, nil
	}

	column, err := s.fetcher.FetchColumn(ctx, sheet, cred)
	if err != nil {
		return nil, err
	}
	if column.Refreshed != nil {
		s.saveCredential(ctx, site, *column.Refreshed)
	}

	key := sheet.Key()
	cursors := site.Cursors.Data()
	for row, value := range column.Values {
		value = strings.TrimSpace(value)
		if value == "" || cursors.HasRow(key, row) {
			continue
		}

		return &models.SourceUnit{
			Kind:  models.SourceSheet,
			Topic: value,
			Payload: map[string]interface{}{
				"spreadsheet_id": sheet.SpreadsheetID,
				"range":          sheet.Range,
				"row":            row,
				"value":          value,
				"unit_key":       source.UnitKey(site.ID, models.SourceSheet, key+"#"+strconv.Itoa(row)),
			},
			Advance: models.CursorAdvance{Source: models.SourceSheet, Key: key, Row: row},
		}, nil
	}

	return nil, nil
}

// saveCredential stores a renewed token so the next cycle does not refresh
// again. A failed write only costs another refresh.
func (s *Source) saveCredential(ctx context.Context, site *models.Site, cred models.OAuthCredential) {
	site.GoogleCredential = datatypes.NewJSONType(cred)
	if s.store == nil {
		return
	}

	patch := map[string]interface{}{"google_credential": site.GoogleCredential}
	if err := s.store.UpdateSite(ctx, site.ID, patch); err != nil {
		s.log.Warn().Err(err).Str("site_id", site.ID).Msg("Failed to store refreshed Google credential")
		return
	}
	s.log.Debug().Str("site_id", site.ID).Time("expires_at", cred.ExpiresAt).Msg("Stored refreshed Google credential")
}

// Ensure Source implements source.Provider
var _ source.Provider = (*Source)(nil)
