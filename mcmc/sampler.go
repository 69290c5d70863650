// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mcmc implements a Metropolis-Hastings sampler over arbitrary states
package mcmc

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

const (
	// Improvement is the factor the entropy has to drop by to reach a checkpoint
	Improvement = 0.995
)

// Status is the status of a run
type Status int

const (
	// Running is the status of a run in progress
	Running Status = iota
	// Converged means the acceptance rate fell under the tolerance at a checkpoint
	Converged
	// Exhausted means the iteration or proposal budget ran out
	Exhausted
	// Cancelled means the context ended the run
	Cancelled
	// Failed means a proposal or density call failed
	Failed
)

var statuses = [...]string{
	Running:   "running",
	Converged: "converged",
	Exhausted: "exhausted",
	Cancelled: "cancelled",
	Failed:    "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statuses) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statuses[s]
}

// Snapshot is a diagnostic view of a run
type Snapshot[S any] struct {
	Iteration  int
	Entropy    float64
	Acceptance float64
	State      S
	// Periodic is set for snapshots emitted by the cadence rather than a checkpoint
	Periodic bool
}

// Config configures a run
type Config[S any] struct {
	// Iterations is the number of accepted moves after which the run stops
	Iterations int
	// Tolerance is the acceptance rate under which a checkpoint stops the run
	Tolerance float64
	// Cadence emits a snapshot every Cadence accepted moves, 0 disables it
	Cadence int
	// MaxProposals bounds the number of proposals, 0 is unbounded
	MaxProposals int
	// Rng draws the acceptance tests
	Rng *rand.Rand
	// Probe samples memory and CPU, nil disables sampling
	Probe Probe
	// Snapshot receives diagnostics
	Snapshot func(Snapshot[S])
	// Error is recorded for every accepted state when set
	Error func(S) float64
	// Correction is added to the log acceptance ratio when set, it is
	// log q(to -> from) - log q(from -> to) for an asymmetric proposal
	Correction func(from, to S) (float64, error)
}

// Result is the outcome of a run
type Result[S any] struct {
	// States holds the initial state followed by every accepted state
	States []S
	// LogProbs holds the log density of each of States
	LogProbs []float64
	// Errors holds the error of each accepted state if Config.Error is set
	Errors      []float64
	Performance Performance
	Status      Status
	Err         error
}

// Accept reports whether a move changing the log density by delta is taken for
// the uniform draw u
func Accept(delta, u float64) bool {
	return delta > math.Log(u)
}

// Run runs a Metropolis-Hastings chain from initial
func Run[S any](ctx context.Context, initial S, propose func(S) (S, error), density func(S) (float64, error), config Config[S]) (result Result[S]) {
	probe := config.Probe
	if probe == nil {
		probe = nopProbe{}
	}
	rng := config.Rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(1, 1))
	}

	result = Result[S]{
		Performance: newPerformance(probe),
		Status:      Running,
	}
	perf := &result.Performance
	defer perf.finish(probe)

	p1, err := density(initial)
	if err != nil {
		result.Status, result.Err = Failed, fmt.Errorf("initial state: %w", err)
		return result
	}
	perf.Algorithm.BestEntropy = min(perf.Algorithm.BestEntropy, -p1)

	state := initial
	result.States = append(result.States, initial)
	result.LogProbs = append(result.LogProbs, p1)
	if config.Error != nil {
		result.Errors = []float64{}
	}

	checkpoint := -p1
	proposals, accepted, it := 0, 0, 0
	for it < config.Iterations {
		if err := ctx.Err(); err != nil {
			result.Status, result.Err = Cancelled, err
			return result
		}
		if config.MaxProposals > 0 && perf.Algorithm.Proposals >= config.MaxProposals {
			break
		}

		t0 := time.Now()
		next, err := propose(state)
		dt := time.Since(t0)
		perf.Time.Proposal += dt
		perf.Algorithm.Proposals++
		proposals++
		if err != nil {
			result.Status, result.Err = Failed, fmt.Errorf("proposal %d: %w", perf.Algorithm.Proposals, err)
			return result
		}

		t1 := time.Now()
		p2, err := density(next)
		dp := time.Since(t1)
		perf.Time.Density += dp
		if err != nil {
			result.Status, result.Err = Failed, fmt.Errorf("density of proposal %d: %w", perf.Algorithm.Proposals, err)
			return result
		}

		delta := p2 - p1
		if config.Correction != nil {
			correction, err := config.Correction(state, next)
			if err != nil {
				result.Status, result.Err = Failed, fmt.Errorf("correction of proposal %d: %w", perf.Algorithm.Proposals, err)
				return result
			}
			delta += correction
		}
		if !Accept(delta, rng.Float64()) {
			continue
		}

		state, p1 = next, p2
		accepted++
		it++
		result.States = append(result.States, state)
		result.LogProbs = append(result.LogProbs, p1)
		if config.Error != nil {
			result.Errors = append(result.Errors, config.Error(state))
		}

		entropy := -p1
		perf.Algorithm.Iterations = it
		perf.Algorithm.Accepted++
		perf.Algorithm.BestEntropy = min(perf.Algorithm.BestEntropy, entropy)
		perf.sample(probe, Timing{Proposal: dt, Density: dp})

		rate := float64(accepted) / float64(proposals)
		if config.Cadence > 0 && it%config.Cadence == 0 && config.Snapshot != nil {
			config.Snapshot(Snapshot[S]{
				Iteration:  it,
				Entropy:    entropy,
				Acceptance: rate,
				State:      state,
				Periodic:   true,
			})
		}

		if entropy < Improvement*checkpoint {
			checkpoint = entropy
			if config.Snapshot != nil {
				config.Snapshot(Snapshot[S]{
					Iteration:  it,
					Entropy:    entropy,
					Acceptance: rate,
					State:      state,
				})
			}
			if rate < config.Tolerance {
				result.Status = Converged
				return result
			}
			proposals, accepted = 0, 0
		}
	}

	result.Status = Exhausted
	return result
}
