// Package errors re-exports github.com/cockroachdb/errors and defines the
// sentinel errors shared by the scheduler, its stores and source providers.
//
// Wrap with context and check with Is:
//
//	if err := repo.UpdateSite(ctx, id, patch); err != nil {
//	    return errors.Wrapf(err, "persist next run for site %s", id)
//	}
//
//	if errors.Is(err, errors.ErrNotAuthorized) {
//	    // credential revoked, treat source as empty
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Creation and wrapping
var (
	New    = crdb.New
	Newf   = crdb.Newf
	Wrap   = crdb.Wrap
	Wrapf  = crdb.Wrapf
	Errorf = crdb.Errorf
)

// Details and hints
var (
	WithDetail    = crdb.WithDetail
	WithDetailf   = crdb.WithDetailf
	WithHint      = crdb.WithHint
	GetAllDetails = crdb.GetAllDetails
)

// Inspection
var (
	Is        = crdb.Is
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

var (
	// ErrNotFound indicates the requested site, user or record does not exist
	ErrNotFound = New("not found")

	// ErrNotAuthorized indicates an upstream provider rejected the credential
	// (HTTP 401/403 or a failed token refresh). Providers must return it
	// separately from generic fetch failures.
	ErrNotAuthorized = New("not authorized")

	// ErrUnsupportedSource indicates a channel selected a source kind with no
	// registered provider
	ErrUnsupportedSource = New("unsupported source kind")
)

// IsNotAuthorized reports whether err is or wraps ErrNotAuthorized
func IsNotAuthorized(err error) bool {
	return err != nil && Is(err, ErrNotAuthorized)
}

// IsNotFound reports whether err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}
