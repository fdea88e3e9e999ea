// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/patent-scout/internal/session"
	"github.com/pdiddy/patent-scout/internal/source"
	"github.com/pdiddy/patent-scout/pkg/types"
)

// fakeConnector answers every term with one match, except terms listed
// in failOn (error) or blockOn (wait for cancellation).
type fakeConnector struct {
	name    string
	failOn  map[string]error
	blockOn map[string]bool
}

func (f *fakeConnector) Name() string { return f.name }

func (f *fakeConnector) Search(ctx context.Context, term types.SearchTerm) ([]types.RawMatch, error) {
	if f.blockOn[term.Text] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := f.failOn[term.Text]; err != nil {
		return nil, err
	}
	return []types.RawMatch{{
		Source:        f.name,
		CountryCode:   "BR",
		PublicationID: "11" + term.Text,
		Term:          term,
	}}, nil
}

// scriptedOffice is a stateful source whose expiry behavior is scripted
// per term: expireAlways terms fail every search, expireOnce terms fail
// the first search only.
type scriptedOffice struct {
	mu           sync.Mutex
	logins       int
	searches     int
	failLogins   bool
	expireOnce   map[string]bool
	expireAlways map[string]bool
	tripped      map[string]bool
}

func (o *scriptedOffice) Name() string { return "office" }

func (o *scriptedOffice) Login(_ context.Context) (*source.Session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.logins++
	if o.failLogins {
		return nil, &source.AuthError{Source: "office", Err: fmt.Errorf("rejected")}
	}
	return &source.Session{EstablishedAt: time.Now()}, nil
}

func (o *scriptedOffice) SearchWithSession(_ context.Context, _ *source.Session, term types.SearchTerm) ([]types.RawMatch, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searches++
	if o.expireAlways[term.Text] {
		return nil, &source.ConnectorError{Source: "office", Kind: source.KindSessionExpired, Err: fmt.Errorf("login form")}
	}
	if o.expireOnce[term.Text] && !o.tripped[term.Text] {
		if o.tripped == nil {
			o.tripped = make(map[string]bool)
		}
		o.tripped[term.Text] = true
		return nil, &source.ConnectorError{Source: "office", Kind: source.KindSessionExpired, Err: fmt.Errorf("login form")}
	}
	return []types.RawMatch{{Source: "office", PublicationID: "BR 11 " + term.Text, Term: term}}, nil
}

func (o *scriptedOffice) counts() (logins, searches int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.logins, o.searches
}

func terms(n int) []types.SearchTerm {
	out := make([]types.SearchTerm, n)
	for i := range out {
		out[i] = types.SearchTerm{
			Text:     fmt.Sprintf("t%02d", i+1),
			Field:    types.FieldTitle,
			Strategy: types.StrategyTextual,
		}
	}
	return out
}

func fastSessionCfg() types.SessionConfig {
	return types.SessionConfig{MaxLoginAttempts: 3, LoginBackoff: time.Millisecond, MinLoginInterval: time.Millisecond}
}

func fastCfg() types.SchedulerConfig {
	return types.SchedulerConfig{Workers: 4, BatchSize: 7, QueryDelay: 0, JobTimeout: 10 * time.Second}
}

func TestRunStatelessCollectsAll(t *testing.T) {
	s := &Scheduler{
		Stateless: []source.Connector{
			&fakeConnector{name: "epo"},
			&fakeConnector{name: "gpatents"},
		},
		Cfg: fastCfg(),
		Log: zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(10))
	if out.Partial {
		t.Error("run should complete fully")
	}
	if len(out.Matches) != 20 {
		t.Errorf("len(Matches) = %d, want 20", len(out.Matches))
	}
	if out.TermsSearched != 10 {
		t.Errorf("TermsSearched = %d, want 10", out.TermsSearched)
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", out.Diagnostics)
	}
}

func TestRunIsolatesTermFailures(t *testing.T) {
	failing := &fakeConnector{
		name: "epo",
		failOn: map[string]error{
			"t03": &source.ConnectorError{Source: "epo", Kind: source.KindTransient, Err: fmt.Errorf("HTTP 503")},
		},
	}
	s := &Scheduler{
		Stateless: []source.Connector{failing, &fakeConnector{name: "gpatents"}},
		Cfg:       fastCfg(),
		Log:       zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(5))
	if len(out.Matches) != 9 {
		t.Errorf("len(Matches) = %d, want 9", len(out.Matches))
	}
	if len(out.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %v, want exactly one", out.Diagnostics)
	}
	d := out.Diagnostics[0]
	if d.Source != "epo" || d.Term != "t03" || d.Kind != string(source.KindTransient) {
		t.Errorf("diagnostic = %+v", d)
	}
	if out.Partial {
		t.Error("per-term failure must not mark the run partial")
	}
}

// A session expiring mid-batch is healed by the manager: one re-login,
// the query retried once, and the rest of the batch proceeds without
// another authentication.
func TestRunStatefulExpiryMidBatch(t *testing.T) {
	office := &scriptedOffice{expireOnce: map[string]bool{"t03": true}}
	s := &Scheduler{
		Stateful: office,
		Sessions: session.NewManager(office, fastSessionCfg()),
		Cfg:      fastCfg(),
		Log:      zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(7))
	if len(out.Matches) != 7 {
		t.Errorf("len(Matches) = %d, want 7", len(out.Matches))
	}
	if len(out.Diagnostics) != 0 {
		t.Errorf("Diagnostics = %v, want none", out.Diagnostics)
	}

	logins, searches := office.counts()
	if logins != 2 {
		t.Errorf("logins = %d, want 2 (initial + one re-login)", logins)
	}
	if searches != 8 {
		t.Errorf("searches = %d, want 8 (7 terms + one retry)", searches)
	}
}

// A term that keeps expiring is requeued once against a fresh session,
// then recorded as failed without aborting the batch.
func TestRunStatefulRequeueOnce(t *testing.T) {
	office := &scriptedOffice{expireAlways: map[string]bool{"t05": true}}
	s := &Scheduler{
		Stateful: office,
		Sessions: session.NewManager(office, fastSessionCfg()),
		Cfg:      fastCfg(),
		Log:      zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(7))
	if len(out.Matches) != 6 {
		t.Errorf("len(Matches) = %d, want 6", len(out.Matches))
	}
	if len(out.Diagnostics) != 1 {
		t.Fatalf("Diagnostics = %v, want exactly one", out.Diagnostics)
	}
	d := out.Diagnostics[0]
	if d.Term != "t05" || d.Kind != string(source.KindSessionExpired) {
		t.Errorf("diagnostic = %+v", d)
	}
	if !strings.Contains(d.Message, "requeue") {
		t.Errorf("diagnostic message = %q, should mention the exhausted requeue", d.Message)
	}
	if out.AuthErr != nil {
		t.Errorf("AuthErr = %v, want nil", out.AuthErr)
	}
}

func TestRunStatefulAuthExhausted(t *testing.T) {
	office := &scriptedOffice{failLogins: true}
	s := &Scheduler{
		Stateful: office,
		Sessions: session.NewManager(office, fastSessionCfg()),
		Cfg:      fastCfg(),
		Log:      zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(5))
	if out.AuthErr == nil {
		t.Fatal("AuthErr should be set when logins are exhausted")
	}
	if !source.IsAuthFailed(out.AuthErr) {
		t.Errorf("AuthErr = %v, want auth failure", out.AuthErr)
	}
	if len(out.Diagnostics) != 5 {
		t.Errorf("len(Diagnostics) = %d, want one per abandoned term", len(out.Diagnostics))
	}
	logins, _ := office.counts()
	if logins != 3 {
		t.Errorf("logins = %d, want 3 bounded attempts", logins)
	}
}

// A job timeout finalizes with whatever completed: the two blocked terms
// are lost, the other 48 are all present, and the run is marked partial.
func TestRunTimeoutYieldsPartial(t *testing.T) {
	blocking := &fakeConnector{
		name:    "epo",
		blockOn: map[string]bool{"t49": true, "t50": true},
	}
	cfg := fastCfg()
	cfg.JobTimeout = 150 * time.Millisecond

	s := &Scheduler{
		Stateless: []source.Connector{blocking},
		Cfg:       cfg,
		Log:       zerolog.Nop(),
	}

	out := s.Run(context.Background(), terms(50))
	if !out.Partial {
		t.Fatal("run should be marked partial after timeout")
	}
	if out.TermsSearched != 48 {
		t.Errorf("TermsSearched = %d, want 48", out.TermsSearched)
	}
	if len(out.Matches) != 48 {
		t.Errorf("len(Matches) = %d, want the 48 completed terms' matches", len(out.Matches))
	}
}
