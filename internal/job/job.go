// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package job

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pdiddy/patent-scout/pkg/types"
)

// Sentinel errors for the status/result queries.
var (
	ErrNotFound = errors.New("job not found")
	ErrNotReady = errors.New("job result not ready")
)

var validate = validator.New()

// Orchestrator owns the job registry and is the sole writer of job
// state. Jobs run as independent background units; nothing mutable is
// shared between them.
type Orchestrator struct {
	pipeline *Pipeline

	mu   sync.Mutex
	jobs map[string]*types.Job
}

// NewOrchestrator returns an orchestrator running jobs through p.
func NewOrchestrator(p *Pipeline) *Orchestrator {
	return &Orchestrator{pipeline: p, jobs: make(map[string]*types.Job)}
}

// Submit validates the inputs, registers a pending job, and dispatches
// it in the background. Invalid inputs fail here; the job never starts.
func (o *Orchestrator) Submit(inputs types.JobInputs) (string, error) {
	if err := validate.Struct(inputs); err != nil {
		return "", fmt.Errorf("invalid inputs: %w", err)
	}

	j := &types.Job{
		ID:          uuid.NewString(),
		Inputs:      inputs,
		State:       types.JobPending,
		SubmittedAt: time.Now(),
	}
	o.mu.Lock()
	o.jobs[j.ID] = j
	o.mu.Unlock()

	go o.run(context.Background(), j.ID)
	return j.ID, nil
}

// Run executes a job synchronously and returns its result. Used by the
// CLI, where there is nothing else to do but wait.
func (o *Orchestrator) Run(ctx context.Context, inputs types.JobInputs) (*types.JobResult, error) {
	if err := validate.Struct(inputs); err != nil {
		return nil, fmt.Errorf("invalid inputs: %w", err)
	}

	j := &types.Job{
		ID:          uuid.NewString(),
		Inputs:      inputs,
		State:       types.JobPending,
		SubmittedAt: time.Now(),
	}
	o.mu.Lock()
	o.jobs[j.ID] = j
	o.mu.Unlock()

	o.run(ctx, j.ID)

	snap, _ := o.Get(j.ID)
	if snap.State == types.JobFailed {
		return nil, errors.New(snap.Err)
	}
	return snap.Result, nil
}

// run drives one job through the state machine. Pending -> Running ->
// Succeeded/Failed; the terminal states are never left. Partial results
// are a success with the completeness flag set, never a failure.
func (o *Orchestrator) run(ctx context.Context, id string) {
	o.transition(id, func(j *types.Job) {
		j.State = types.JobRunning
		j.StartedAt = time.Now()
	})

	var inputs types.JobInputs
	if snap, ok := o.Get(id); ok {
		inputs = snap.Inputs
	}

	result, err := o.pipeline.Execute(ctx, id, inputs)
	if err != nil {
		o.transition(id, func(j *types.Job) {
			j.State = types.JobFailed
			j.Err = err.Error()
			j.FinishedAt = time.Now()
		})
		return
	}

	o.transition(id, func(j *types.Job) {
		j.State = types.JobSucceeded
		j.Result = result
		j.FinishedAt = time.Now()
	})
}

// Status returns the job's current state.
func (o *Orchestrator) Status(id string) (types.JobState, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok {
		return "", ErrNotFound
	}
	return j.State, nil
}

// Get returns a consistent snapshot of the job.
func (o *Orchestrator) Get(id string) (types.Job, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok {
		return types.Job{}, false
	}
	return *j, true
}

// List returns a snapshot of every registered job, most recently
// submitted first.
func (o *Orchestrator) List() []types.Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	jobs := make([]types.Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		jobs = append(jobs, *j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].SubmittedAt.After(jobs[k].SubmittedAt)
	})
	return jobs
}

// Result returns the finished job's result, ErrNotReady while it is
// still running, or the job's fatal error.
func (o *Orchestrator) Result(id string) (*types.JobResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch j.State {
	case types.JobSucceeded:
		return j.Result, nil
	case types.JobFailed:
		return nil, errors.New(j.Err)
	default:
		return nil, ErrNotReady
	}
}

// transition applies fn to the job under the registry lock. Terminal
// states are immutable.
func (o *Orchestrator) transition(id string, fn func(*types.Job)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	j, ok := o.jobs[id]
	if !ok || j.State.Terminal() {
		return
	}
	fn(j)
}
