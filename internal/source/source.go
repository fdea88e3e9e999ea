// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the connectors that query each patent data
// source. Implements: prd010-aggregation (R3, R5);
//
//	docs/ARCHITECTURE § Sources.
//
// Each connector turns one search term into raw matches and classifies
// its failures (errors.go) so the scheduler can apply a uniform retry
// and fault-isolation policy.
package source

import (
	"context"
	"net/http"
	"time"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// Connector searches a single stateless source. Connectors are safe for
// concurrent use; the scheduler fans terms out across a worker pool.
type Connector interface {
	Name() string
	Search(ctx context.Context, term types.SearchTerm) ([]types.RawMatch, error)
}

// Session is an authenticated handle on a stateful source. The cookie
// jar inside Client carries the portal's session state; the handle is
// owned by the session manager and never shared across jobs.
type Session struct {
	Client        *http.Client
	EstablishedAt time.Time
}

// StatefulConnector is a source that requires login before searching.
// Search calls accept the session handle obtained from Login; expiry is
// reported as a ConnectorError with KindSessionExpired.
type StatefulConnector interface {
	Name() string
	Login(ctx context.Context) (*Session, error)
	SearchWithSession(ctx context.Context, sess *Session, term types.SearchTerm) ([]types.RawMatch, error)
}
