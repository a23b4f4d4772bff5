package sheets

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/site-autopilot/internal/models"
	"github.com/site-autopilot/pkg/errors"
	"github.com/site-autopilot/pkg/ratelimit"
)

// Fetcher reads one spreadsheet column with a site's credential. Implementations
// return an error wrapping errors.ErrNotAuthorized when the credential is
// rejected or can no longer be refreshed.
type Fetcher interface {
	FetchColumn(ctx context.Context, src models.SheetSource, cred models.OAuthCredential) (*Column, error)
}

// Column is one read of a sheet range
type Column struct {
	Values []string
	// Refreshed is set when the access token was renewed during the read and
	// must be stored in place of the old credential
	Refreshed *models.OAuthCredential
}

// Config holds the OAuth client the site credentials were issued to
type Config struct {
	ClientID     string
	ClientSecret string
	// TokenURL defaults to Google's token endpoint
	TokenURL string
}

const googleTokenURL = "https://oauth2.googleapis.com/token"

// APIFetcher reads columns through the Sheets v4 API
type APIFetcher struct {
	oauth   *oauth2.Config
	limiter *ratelimit.MultiLimiter
	opts    []option.ClientOption
}

// NewAPIFetcher creates a Sheets fetcher. Extra client options are appended to
// every service (tests point the endpoint at a local server).
func NewAPIFetcher(cfg Config, limiter *ratelimit.MultiLimiter, opts ...option.ClientOption) *APIFetcher {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = googleTokenURL
	}

	return &APIFetcher{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{sheets.SpreadsheetsReadonlyScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://accounts.google.com/o/oauth2/auth",
				TokenURL: tokenURL,
			},
		},
		limiter: limiter,
		opts:    opts,
	}
}

// FetchColumn returns the values of src.Range, first column only
func (f *APIFetcher) FetchColumn(ctx context.Context, src models.SheetSource, cred models.OAuthCredential) (*Column, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, ratelimit.LimiterSheets); err != nil {
			return nil, errors.Wrap(err, "sheets rate limit")
		}
	}

	tokenSource := f.oauth.TokenSource(ctx, cred.ToOAuth2Token())
	opts := append([]option.ClientOption{option.WithTokenSource(tokenSource)}, f.opts...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create sheets service")
	}

	resp, err := srv.Spreadsheets.Values.Get(src.SpreadsheetID, src.Range).
		MajorDimension("COLUMNS").
		Context(ctx).
		Do()
	if err != nil {
		if notAuthorized(err) {
			return nil, errors.Wrapf(errors.ErrNotAuthorized, "spreadsheet %s: %v", src.SpreadsheetID, err)
		}
		return nil, errors.Wrapf(err, "failed to read spreadsheet %s range %s", src.SpreadsheetID, src.Range)
	}

	column := &Column{Refreshed: refreshed(tokenSource, cred)}
	if len(resp.Values) == 0 {
		return column, nil
	}

	column.Values = make([]string, 0, len(resp.Values[0]))
	for _, cell := range resp.Values[0] {
		column.Values = append(column.Values, fmt.Sprint(cell))
	}
	return column, nil
}

// refreshed returns the token the source settled on when it differs from the
// stored one. The source caches its token, so this never calls the endpoint
// again after a successful request.
func refreshed(ts oauth2.TokenSource, old models.OAuthCredential) *models.OAuthCredential {
	token, err := ts.Token()
	if err != nil || token.AccessToken == "" || token.AccessToken == old.AccessToken {
		return nil
	}

	cred := models.FromOAuth2Token(token)
	if cred.RefreshToken == "" {
		cred.RefreshToken = old.RefreshToken
	}
	return &cred
}

func notAuthorized(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden
	}
	// refresh token revoked or expired
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}
