package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff for grid submissions. Grid
// masters reject submissions transiently (load, license churn, queue
// flaps); retrying with jitter rides those out.
type RetryConfig struct {
	InitialInterval     time.Duration // Initial retry interval (default 500ms)
	MaxInterval         time.Duration // Maximum retry interval (default 30s)
	MaxElapsedTime      time.Duration // Maximum total retry time (default 5min)
	Multiplier          float64       // Backoff multiplier (default 2.0)
	RandomizationFactor float64       // Jitter factor (default 0.5)
}

// DefaultRetryConfig returns the default grid submission retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		MaxElapsedTime:      5 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// Grid submits scripts synchronously to a grid-engine scheduler. Submit
// blocks until the remote job completes, mirroring `qsub -sync y`.
// Submissions are retried with exponential backoff and guarded by a
// per-queue circuit breaker so a dead grid master fails fast instead of
// stacking up blocked submissions.
type Grid struct {
	// Command is the submission command prefix; the script path is appended.
	Command []string
	// Queue, when non-empty, is passed via -q and names the circuit breaker.
	Queue string
	// Retry configures the backoff policy.
	Retry RetryConfig
	// Procs, when set, tracks submission subprocesses for shutdown cleanup.
	Procs *ProcessManager

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewGrid creates a Grid with the standard qsub submission command.
func NewGrid(retry RetryConfig) *Grid {
	return &Grid{
		Command: []string{"qsub", "-sync", "y", "-S", "/bin/bash"},
		Retry:   retry,
	}
}

// DefaultGrid is the process-wide grid submitter used when a task
// constructor is not handed its own.
var DefaultGrid = NewGrid(DefaultRetryConfig())

// breaker returns the circuit breaker for the grid's queue, creating it on
// first use.
func (g *Grid) breaker() *gobreaker.CircuitBreaker {
	name := g.Queue
	if name == "" {
		name = "default"
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.breakers == nil {
		g.breakers = make(map[string]*gobreaker.CircuitBreaker)
	}
	if cb, ok := g.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // test requests allowed in half-open state
		Interval:    0,                // don't clear counts automatically
		Timeout:     30 * time.Second, // stay open for 30s before testing recovery
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("grid queue %q circuit breaker: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// Cancellation is the caller's doing, not the grid's.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	g.breakers[name] = cb
	return cb
}

// Run implements Runner.
func (g *Grid) Run(ctx context.Context, script string) error {
	return g.Submit(ctx, script)
}

// Submit submits the script and blocks until the remote job completes.
func (g *Grid) Submit(ctx context.Context, script string) error {
	cb := g.breaker()

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		_, err := cb.Execute(func() (interface{}, error) {
			return nil, g.submitOnce(ctx, script)
		})
		if err != nil {
			// Circuit is open - don't keep retrying against a dead master.
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.Retry.InitialInterval
	policy.MaxInterval = g.Retry.MaxInterval
	policy.MaxElapsedTime = g.Retry.MaxElapsedTime
	policy.Multiplier = g.Retry.Multiplier
	policy.RandomizationFactor = g.Retry.RandomizationFactor

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("grid submission of %s: %w", script, err)
	}
	return nil
}

func (g *Grid) submitOnce(ctx context.Context, script string) error {
	args := append([]string{}, g.Command[1:]...)
	if g.Queue != "" {
		args = append(args, "-q", g.Queue)
	}
	args = append(args, script)

	cmd := newCommand(ctx, g.Command[0], args...)
	stdout, _, err := runCommand(ctx, cmd, g.Procs)
	if err != nil {
		return err
	}
	if len(stdout) > 0 {
		log.Printf("grid job %s: %s", script, stdout)
	}
	return nil
}
