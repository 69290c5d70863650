// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chains runs independent decipher chains and merges their guesses.
package chains

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
	"github.com/zjscholnick/MCMC-Message-Decryption/cipher"
	"github.com/zjscholnick/MCMC-Message-Decryption/mcmc"
)

// Proposal names a proposal generator
type Proposal string

const (
	// Weighted is the frequency weighted swap
	Weighted Proposal = "weighted"
	// Uniform is the uniform swap
	Uniform Proposal = "uniform"
)

// Config configures a set of chains
type Config struct {
	Chains       int
	Seed         uint64
	Iterations   int
	Tolerance    float64
	Cadence      int
	MaxProposals int
	Proposal     Proposal
	Policy       bigram.Policy
	// Hastings corrects the acceptance test for asymmetric proposals
	Hastings bool
	// Key is the starting key, ignored when Random is set
	Key    cipher.Key
	Random bool
	// Probe creates the probe of a chain, nil disables probing
	Probe func() mcmc.Probe
	// Snapshot receives the diagnostics of every chain, it is called concurrently
	Snapshot func(chain int, snapshot mcmc.Snapshot[*cipher.State])
}

// Chain is the outcome of one chain
type Chain struct {
	ID     string
	Index  int
	Result mcmc.Result[*cipher.State]
}

// Failed reports whether the chain ended without a usable trajectory
func (c *Chain) Failed() bool {
	return c.Result.Err != nil
}

// Run runs the chains concurrently and returns them in index order
func Run(ctx context.Context, model *bigram.Model, ciphertext []rune, config Config) []Chain {
	n := max(1, config.Chains)
	chains := make([]Chain, n)
	var wg sync.WaitGroup
	for i := range chains {
		chains[i] = Chain{ID: uuid.New().String(), Index: i}
		wg.Add(1)
		go func(c *Chain) {
			defer wg.Done()
			c.Result = run(ctx, model, ciphertext, config, c)
		}(&chains[i])
	}
	wg.Wait()
	return chains
}

func run(ctx context.Context, model *bigram.Model, ciphertext []rune, config Config, c *Chain) mcmc.Result[*cipher.State] {
	ctx, span := otel.Tracer("chains").Start(ctx, "chains.Run",
		trace.WithAttributes(
			attribute.String("chain_id", c.ID),
			attribute.Int("chain_index", c.Index),
			attribute.String("proposal", string(config.Proposal)),
			attribute.String("policy", config.Policy.String()),
			attribute.Int("iterations", config.Iterations),
		))
	defer span.End()

	rng := rand.New(rand.NewPCG(config.Seed+uint64(c.Index), uint64(c.Index)))
	key := config.Key
	if config.Random {
		key = cipher.Shuffled(rng)
	} else if !key.Valid() {
		key = cipher.Identity()
	}

	var (
		proposer  cipher.Proposer
		corrector cipher.Corrector
	)
	switch config.Proposal {
	case Uniform:
		u := cipher.Uniform{Rng: rng}
		proposer, corrector = u, u
	case Weighted, "":
		w := cipher.NewWeighted(model, rng)
		proposer, corrector = w, w
	default:
		err := fmt.Errorf("%w: unknown proposal %q", bigram.ErrInvalidInput, config.Proposal)
		span.SetStatus(codes.Error, "unknown proposal")
		return mcmc.Result[*cipher.State]{Status: mcmc.Failed, Err: err}
	}

	sampler := mcmc.Config[*cipher.State]{
		Iterations:   config.Iterations,
		Tolerance:    config.Tolerance,
		Cadence:      config.Cadence,
		MaxProposals: config.MaxProposals,
		Rng:          rng,
	}
	if config.Probe != nil {
		sampler.Probe = config.Probe()
	}
	if config.Snapshot != nil {
		sampler.Snapshot = func(s mcmc.Snapshot[*cipher.State]) {
			config.Snapshot(c.Index, s)
		}
	}
	if config.Hastings {
		sampler.Correction = corrector.LogProposalRatio
	}

	initial := cipher.NewState(ciphertext, model, key)
	result := mcmc.Run(ctx, initial, proposer.Propose, cipher.Density(config.Policy), sampler)

	algorithm := result.Performance.Algorithm
	span.SetAttributes(
		attribute.String("status", result.Status.String()),
		attribute.Int("accepted", algorithm.Accepted),
		attribute.Int("proposals", algorithm.Proposals),
		attribute.Float64("best_entropy", algorithm.BestEntropy),
	)
	if result.Err != nil {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Status.String())
	}
	return result
}

// Guess is a state of a trajectory with its log probability
type Guess struct {
	Chain   int
	Order   int
	State   *cipher.State
	LogProb float64
}

// Entropy is the negated log probability
func (g Guess) Entropy() float64 {
	return -g.LogProb
}

// Rank merges the trajectories of the chains that did not fail, most
// probable first; ties go to the earlier accepted state, then the lower
// chain index
func Rank(chains []Chain) []Guess {
	var guesses []Guess
	for _, c := range chains {
		if c.Failed() {
			continue
		}
		for i, state := range c.Result.States {
			guesses = append(guesses, Guess{
				Chain:   c.Index,
				Order:   i,
				State:   state,
				LogProb: c.Result.LogProbs[i],
			})
		}
	}
	sort.SliceStable(guesses, func(i, j int) bool {
		a, b := guesses[i], guesses[j]
		if a.LogProb != b.LogProb {
			return a.LogProb > b.LogProb
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Chain < b.Chain
	})
	return guesses
}

// Best returns the first n ranked guesses with distinct decodings
func Best(guesses []Guess, n int) []Guess {
	seen := make(map[string]bool)
	best := make([]Guess, 0, n)
	for _, g := range guesses {
		if len(best) == n {
			break
		}
		text := g.State.String()
		if seen[text] {
			continue
		}
		seen[text] = true
		best = append(best, g)
	}
	return best
}

// Failures describes the chains that failed
func Failures(chains []Chain) string {
	var failures []string
	for _, c := range chains {
		if c.Failed() {
			failures = append(failures, fmt.Sprintf("chain %d (%s) %s: %v", c.Index, c.ID, c.Result.Status, c.Result.Err))
		}
	}
	return strings.Join(failures, "\n")
}
