// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schedule executes generated search terms against all
// configured sources with per-term fault isolation.
// Implements: prd012-scheduler (R1-R4);
//
//	docs/ARCHITECTURE § Batch Scheduler.
//
// Stateless sources run under a bounded worker pool. The stateful source
// runs sequentially in fixed-size batches through the session manager,
// paced to respect the portal's rate limits. No term failure aborts the
// run; everything that went wrong ends up in the diagnostics list.
package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/patent-scout/internal/session"
	"github.com/pdiddy/patent-scout/internal/source"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// errRequeueExhausted marks a term that still saw session expiry after
// the one allowed batch requeue.
var errRequeueExhausted = errors.New("session expired after batch requeue")

const (
	defaultWorkers    = 4
	defaultBatchSize  = 7
	defaultQueryDelay = 3 * time.Second
	defaultJobTimeout = 30 * time.Minute
)

// Scheduler drives one job's term execution. Sessions guards Stateful
// and must be set when Stateful is.
type Scheduler struct {
	Stateless []source.Connector
	Stateful  source.StatefulConnector
	Sessions  *session.Manager
	Cfg       types.SchedulerConfig
	Log       zerolog.Logger
}

// Output is everything the run produced. Partial is set when the job
// timeout cut execution short; AuthErr is set when the stateful source's
// login attempts were exhausted (escalation is the orchestrator's call).
type Output struct {
	Matches       []types.RawMatch
	Diagnostics   []types.Diagnostic
	Partial       bool
	TermsSearched int
	AuthErr       error
}

// Run executes every term against every configured source and collects
// the raw matches. It always returns: per-term failures become
// diagnostics and a timeout yields the partial results gathered so far.
func (s *Scheduler) Run(ctx context.Context, terms []types.SearchTerm) Output {
	cfg := s.Cfg
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.QueryDelay < 0 {
		cfg.QueryDelay = defaultQueryDelay
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.JobTimeout)
	defer cancel()

	col := &collector{completed: make(map[string]bool)}

	var wg sync.WaitGroup
	if s.Stateful != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runStateful(ctx, cfg, terms, col)
		}()
	}

	g := &errgroup.Group{}
	g.SetLimit(cfg.Workers)
	for _, conn := range s.Stateless {
		for _, term := range terms {
			conn, term := conn, term
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				matches, err := conn.Search(ctx, term)
				if err != nil {
					col.fail(conn.Name(), term, err)
					s.Log.Warn().Str("source", conn.Name()).Str("term", term.Text).
						Err(err).Msg("term failed")
					return nil
				}
				col.ok(term, matches)
				return nil
			})
		}
	}
	g.Wait()
	wg.Wait()

	out := Output{
		Matches:       col.matches,
		Diagnostics:   col.diags,
		TermsSearched: len(col.completed),
		AuthErr:       col.authErr,
	}
	if ctx.Err() != nil {
		out.Partial = true
		s.Log.Warn().Int("terms_searched", out.TermsSearched).Int("terms_total", len(terms)).
			Msg("job timeout reached, finalizing with partial results")
	}
	return out
}

// runStateful walks the terms in fixed-size batches through the session
// manager. A term whose session expired beyond the manager's internal
// retry is requeued once, with the whole portal session refreshed, before
// it is recorded as failed.
func (s *Scheduler) runStateful(ctx context.Context, cfg types.SchedulerConfig, terms []types.SearchTerm, col *collector) {
	name := s.Stateful.Name()

	for start := 0; start < len(terms); start += cfg.BatchSize {
		if ctx.Err() != nil {
			return
		}
		end := start + cfg.BatchSize
		if end > len(terms) {
			end = len(terms)
		}
		batch := terms[start:end]

		expired := s.runBatch(ctx, cfg, batch, col)
		if len(expired) == 0 {
			continue
		}

		// One requeue of the expired remainder against a fresh session.
		s.Log.Info().Str("source", name).Int("requeued", len(expired)).
			Msg("requeueing batch after session expiry")
		s.Sessions.Invalidate()
		for _, term := range s.runBatch(ctx, cfg, expired, col) {
			col.fail(name, term, &source.ConnectorError{
				Source: name, Kind: source.KindSessionExpired,
				Err: errRequeueExhausted,
			})
		}
	}
}

// runBatch executes one batch sequentially. Terms still failing on
// session expiry after the manager's internal retry are returned to the
// caller, which either requeues them or records them as failed; all
// other failures are recorded immediately.
func (s *Scheduler) runBatch(ctx context.Context, cfg types.SchedulerConfig, batch []types.SearchTerm, col *collector) []types.SearchTerm {
	name := s.Stateful.Name()
	var expired []types.SearchTerm

	for i, term := range batch {
		if i > 0 && cfg.QueryDelay > 0 {
			select {
			case <-ctx.Done():
				return expired
			case <-time.After(cfg.QueryDelay):
			}
		}
		if ctx.Err() != nil {
			return expired
		}

		var matches []types.RawMatch
		err := s.Sessions.WithSession(ctx, func(sess *source.Session) error {
			var serr error
			matches, serr = s.Stateful.SearchWithSession(ctx, sess, term)
			return serr
		})
		switch {
		case err == nil:
			col.ok(term, matches)
		case source.IsAuthFailed(err):
			// The manager's login attempts are exhausted; every further
			// term would fail the same way.
			col.auth(err)
			for _, t := range batch[i:] {
				col.fail(name, t, err)
			}
			s.Log.Error().Str("source", name).Err(err).
				Msg("authentication exhausted, abandoning stateful source")
			return nil
		case source.IsSessionExpired(err):
			expired = append(expired, term)
		default:
			col.fail(name, term, err)
			s.Log.Warn().Str("source", name).Str("term", term.Text).
				Err(err).Msg("term failed")
		}
	}
	return expired
}

// collector accumulates results from concurrent workers.
type collector struct {
	mu        sync.Mutex
	matches   []types.RawMatch
	diags     []types.Diagnostic
	completed map[string]bool
	authErr   error
}

func (c *collector) ok(term types.SearchTerm, matches []types.RawMatch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.matches = append(c.matches, matches...)
	c.completed[term.Key()] = true
}

func (c *collector) fail(src string, term types.SearchTerm, err error) {
	kind := string(source.KindOf(err))
	if source.IsAuthFailed(err) {
		kind = "auth_failed"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diags = append(c.diags, types.Diagnostic{
		Source:  src,
		Term:    term.Text,
		Field:   term.Field,
		Kind:    kind,
		Message: err.Error(),
	})
}

func (c *collector) auth(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.authErr == nil {
		c.authErr = err
	}
}
