package sheets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/logger"
)

type fakeFetcher struct {
	values    []string
	refreshed *models.OAuthCredential
	err       error
	calls     int
}

func (f *fakeFetcher) FetchColumn(ctx context.Context, src models.SheetSource, cred models.OAuthCredential) (*Column, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &Column{Values: f.values, Refreshed: f.refreshed}, nil
}

type fakeStore struct {
	patches []map[string]interface{}
	err     error
}

func (s *fakeStore) UpdateSite(ctx context.Context, id string, patch map[string]interface{}) error {
	s.patches = append(s.patches, patch)
	return s.err
}

func connectedSite() *models.Site {
	return &models.Site{
		ID:               "site-1",
		Sheet:            datatypes.NewJSONType(models.SheetSource{SpreadsheetID: "sheet-1", Range: "Topics!A2:A"}),
		GoogleCredential: datatypes.NewJSONType(models.OAuthCredential{AccessToken: "t", RefreshToken: "r"}),
	}
}

func TestResolveWithoutCredentialIsEmpty(t *testing.T) {
	fetcher := &fakeFetcher{values: []string{"a"}}
	site := connectedSite()
	site.GoogleCredential = datatypes.NewJSONType(models.OAuthCredential{})

	unit, err := New(fetcher, nil, logger.Nop()).Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	assert.Nil(t, unit)
	assert.Zero(t, fetcher.calls)
}

func TestResolveFirstUnprocessedRow(t *testing.T) {
	fetcher := &fakeFetcher{values: []string{"first", "", "third", "fourth"}}
	site := connectedSite()
	site.Cursors = datatypes.NewJSONType(models.Cursors{
		ProcessedRows: map[string][]int{"sheet-1!Topics!A2:A": {0}},
	})

	src := New(fetcher, nil, logger.Nop())
	unit, err := src.Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "third", unit.Topic)
	assert.Equal(t, 2, unit.Advance.Row)

	_, ok := site.ApplyAdvance(unit.Advance)
	require.True(t, ok)

	unit, err = src.Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "fourth", unit.Topic)
}

func TestResolvePropagatesNotAuthorized(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.Wrap(errors.ErrNotAuthorized, "revoked")}

	_, err := New(fetcher, nil, logger.Nop()).Resolve(context.Background(), connectedSite(), time.Now())
	assert.True(t, errors.IsNotAuthorized(err))
}

func TestResolveStoresRefreshedCredential(t *testing.T) {
	fresh := models.OAuthCredential{AccessToken: "fresh", RefreshToken: "r", ExpiresAt: time.Now().Add(time.Hour)}
	fetcher := &fakeFetcher{values: []string{"solar"}, refreshed: &fresh}
	store := &fakeStore{}
	site := connectedSite()

	unit, err := New(fetcher, store, logger.Nop()).Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	require.NotNil(t, unit)

	require.Len(t, store.patches, 1)
	stored, ok := store.patches[0]["google_credential"].(datatypes.JSONType[models.OAuthCredential])
	require.True(t, ok)
	assert.Equal(t, "fresh", stored.Data().AccessToken)
	assert.Equal(t, "fresh", site.GoogleCredential.Data().AccessToken)
}

func TestResolveStoreFailureStillResolves(t *testing.T) {
	fresh := models.OAuthCredential{AccessToken: "fresh", RefreshToken: "r"}
	fetcher := &fakeFetcher{values: []string{"solar"}, refreshed: &fresh}
	store := &fakeStore{err: errors.New("database is locked")}

	unit, err := New(fetcher, store, logger.Nop()).Resolve(context.Background(), connectedSite(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, "solar", unit.Topic)
}

func TestResolveUnchangedCredentialNotStored(t *testing.T) {
	store := &fakeStore{}

	_, err := New(&fakeFetcher{values: []string{"solar"}}, store, logger.Nop()).Resolve(context.Background(), connectedSite(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, store.patches)
}

func TestUnitKeyFollowsRow(t *testing.T) {
	fetcher := &fakeFetcher{values: []string{"solar", "solar"}}
	site := connectedSite()
	src := New(fetcher, nil, logger.Nop())

	first, err := src.Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	_, ok := site.ApplyAdvance(first.Advance)
	require.True(t, ok)

	second, err := src.Resolve(context.Background(), site, time.Now())
	require.NoError(t, err)
	require.NotNil(t, second)

	assert.Equal(t, first.Topic, second.Topic)
	assert.Equal(t, 1, second.Advance.Row)
	assert.NotEqual(t, first.Payload["unit_key"], second.Payload["unit_key"])
}
