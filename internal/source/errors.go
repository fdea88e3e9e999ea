// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a connector failure for the scheduler's retry and
// escalation policy. NoResults is not an error: connectors return an
// empty slice instead.
type ErrorKind string

const (
	// KindSessionExpired means the stateful source rejected the request
	// because its session is no longer valid; the session manager
	// re-authenticates and retries once.
	KindSessionExpired ErrorKind = "session_expired"

	// KindRateLimited means the source throttled the request after
	// retries were exhausted.
	KindRateLimited ErrorKind = "rate_limited"

	// KindTransient covers network failures and 5xx responses; the term
	// is recorded as failed and the job proceeds.
	KindTransient ErrorKind = "transient"

	// KindFatal covers failures that will not improve on retry
	// (malformed credentials, 4xx other than throttling).
	KindFatal ErrorKind = "fatal"
)

// ConnectorError wraps a per-term source failure with its classification.
// These are always local to one term and one source; the scheduler
// records them and moves on.
type ConnectorError struct {
	Source string
	Kind   ErrorKind
	Err    error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

func newConnectorError(src string, kind ErrorKind, format string, args ...any) *ConnectorError {
	return &ConnectorError{Source: src, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the classification of err, defaulting to KindTransient
// for errors that did not come from a connector.
func KindOf(err error) ErrorKind {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// IsSessionExpired reports whether err is a session-expiry signal.
func IsSessionExpired(err error) bool {
	return KindOf(err) == KindSessionExpired
}

// AuthError is a failed login against a stateful source. It escalates to
// job-fatal only when the source is configured as mandatory.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %v", e.Source, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// IsAuthFailed reports whether err is an authentication failure.
func IsAuthFailed(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
