// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcmc

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

type stubProbe struct {
	memory []float64
	calls  int
}

func (p *stubProbe) SampleMemory() float64 {
	value := p.memory[p.calls%len(p.memory)]
	p.calls++
	return value
}

func (p *stubProbe) SampleCPU() float64 { return 50 }

// ring is a random walk over 0..9 with density proportional to s+1
func ring(rng *rand.Rand) (func(int) (int, error), func(int) (float64, error)) {
	propose := func(s int) (int, error) {
		if rng.IntN(2) == 0 {
			return (s + 1) % 10, nil
		}
		return (s + 9) % 10, nil
	}
	density := func(s int) (float64, error) {
		return math.Log(float64(s + 1)), nil
	}
	return propose, density
}

func TestAccept(t *testing.T) {
	cases := []struct {
		delta, u float64
		accept   bool
	}{
		{-0.1, 1, false},
		{0, 1, false},
		{0.1, 1, true},
		{-1, 0.5, false},
		{-0.5, 0.5, true},
		{-1000, 0, true},
		{math.NaN(), 0.5, false},
	}
	for _, c := range cases {
		if got := Accept(c.delta, c.u); got != c.accept {
			t.Errorf("Accept(%f, %f): expected %v, got %v", c.delta, c.u, c.accept, got)
		}
	}
}

func TestRunRespectsBudget(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	propose, density := ring(rng)
	for _, iterations := range []int{0, 1, 10, 250} {
		result := Run(context.Background(), 0, propose, density, Config[int]{
			Iterations: iterations,
			Rng:        rng,
		})
		if result.Err != nil {
			t.Fatal(result.Err)
		}
		if result.Status != Exhausted {
			t.Errorf("expected exhausted, got %v", result.Status)
		}
		if len(result.States) != iterations+1 {
			t.Errorf("expected %d states, got %d", iterations+1, len(result.States))
		}
		if len(result.LogProbs) != len(result.States) {
			t.Errorf("expected %d log probs, got %d", len(result.States), len(result.LogProbs))
		}
		for i, s := range result.States {
			if result.LogProbs[i] != math.Log(float64(s+1)) {
				t.Fatalf("state %d: log prob %f does not match state %d", i, result.LogProbs[i], s)
			}
		}
		algorithm := result.Performance.Algorithm
		if algorithm.Iterations != iterations || algorithm.Accepted != iterations {
			t.Errorf("expected %d iterations, got %d/%d", iterations, algorithm.Iterations, algorithm.Accepted)
		}
		if algorithm.Proposals < algorithm.Accepted {
			t.Errorf("expected at least %d proposals, got %d", algorithm.Accepted, algorithm.Proposals)
		}
	}
}

func TestRunDeterministic(t *testing.T) {
	run := func() []int {
		rng := rand.New(rand.NewPCG(7, 7))
		propose, density := ring(rng)
		return Run(context.Background(), 3, propose, density, Config[int]{Iterations: 100, Rng: rng}).States
	}
	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected identical trajectories, differ at %d", i)
		}
	}
}

func TestRunConverges(t *testing.T) {
	calls := 0
	propose := func(s int) (int, error) {
		calls++
		if calls%100 == 0 {
			return s + 1, nil
		}
		return -1000, nil
	}
	density := func(s int) (float64, error) {
		return -(1000 - 10*float64(s)), nil
	}

	var snapshots []Snapshot[int]
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 50,
		Tolerance:  0.02,
		Rng:        rand.New(rand.NewPCG(3, 3)),
		Snapshot: func(s Snapshot[int]) {
			snapshots = append(snapshots, s)
		},
	})
	if result.Status != Converged {
		t.Fatalf("expected converged, got %v", result.Status)
	}
	if len(result.States) != 2 {
		t.Errorf("expected 2 states, got %d", len(result.States))
	}
	if len(snapshots) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(snapshots))
	}
	if snapshots[0].Acceptance != 0.01 || snapshots[0].Iteration != 1 || snapshots[0].State != 1 {
		t.Errorf("unexpected snapshot %+v", snapshots[0])
	}
	if snapshots[0].Entropy != 990 {
		t.Errorf("expected entropy 990, got %f", snapshots[0].Entropy)
	}
}

func TestRunKeepsGoingAboveTolerance(t *testing.T) {
	calls := 0
	propose := func(s int) (int, error) {
		calls++
		if calls%100 == 0 {
			return s + 1, nil
		}
		return -1000, nil
	}
	density := func(s int) (float64, error) {
		return -(1000 - 10*float64(s)), nil
	}
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 5,
		Tolerance:  0.005,
		Rng:        rand.New(rand.NewPCG(3, 3)),
	})
	if result.Status != Exhausted {
		t.Errorf("expected exhausted, got %v", result.Status)
	}
	if result.Performance.Algorithm.Proposals != 500 {
		t.Errorf("expected 500 proposals, got %d", result.Performance.Algorithm.Proposals)
	}
	if result.Performance.Algorithm.BestEntropy != 950 {
		t.Errorf("expected best entropy 950, got %f", result.Performance.Algorithm.BestEntropy)
	}
}

func TestRunCadence(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	propose, density := ring(rng)
	periodic := 0
	Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 50,
		Cadence:    10,
		Rng:        rng,
		Snapshot: func(s Snapshot[int]) {
			if s.Periodic {
				periodic++
				if s.Iteration%10 != 0 {
					t.Errorf("expected a snapshot every 10 iterations, got one at %d", s.Iteration)
				}
			}
		},
	})
	if periodic != 5 {
		t.Errorf("expected 5 periodic snapshots, got %d", periodic)
	}
}

func TestRunMaxProposals(t *testing.T) {
	propose := func(s int) (int, error) { return s + 1, nil }
	density := func(s int) (float64, error) { return -1e6 * float64(s), nil }
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations:   10,
		MaxProposals: 25,
		Rng:          rand.New(rand.NewPCG(1, 1)),
	})
	if result.Status != Exhausted {
		t.Errorf("expected exhausted, got %v", result.Status)
	}
	if result.Performance.Algorithm.Proposals != 25 {
		t.Errorf("expected 25 proposals, got %d", result.Performance.Algorithm.Proposals)
	}
	if len(result.States) != 1 {
		t.Errorf("expected only the initial state, got %d states", len(result.States))
	}
	if result.Performance.Algorithm.AcceptRate != 0 {
		t.Errorf("expected accept rate 0, got %f", result.Performance.Algorithm.AcceptRate)
	}
}

func TestRunProposalFailure(t *testing.T) {
	broken := errors.New("broken")
	calls := 0
	propose := func(s int) (int, error) {
		calls++
		if calls == 5 {
			return 0, broken
		}
		return s, nil
	}
	density := func(s int) (float64, error) { return 0, nil }
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 100,
		Rng:        rand.New(rand.NewPCG(1, 1)),
	})
	if result.Status != Failed || !errors.Is(result.Err, broken) {
		t.Errorf("expected failure wrapping %v, got %v %v", broken, result.Status, result.Err)
	}
	if calls != 5 {
		t.Errorf("expected no retries after the failure, got %d calls", calls)
	}
	if len(result.States) != 5 {
		t.Errorf("expected the 5 states before the failure, got %d", len(result.States))
	}
}

func TestRunDensityFailure(t *testing.T) {
	broken := errors.New("broken")
	propose := func(s int) (int, error) { return s + 1, nil }
	density := func(s int) (float64, error) {
		if s == 3 {
			return 0, broken
		}
		return 0, nil
	}
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 100,
		Rng:        rand.New(rand.NewPCG(1, 1)),
	})
	if result.Status != Failed || !errors.Is(result.Err, broken) {
		t.Errorf("expected failure wrapping %v, got %v %v", broken, result.Status, result.Err)
	}

	result = Run(context.Background(), 3, propose, density, Config[int]{Iterations: 1})
	if result.Status != Failed || !errors.Is(result.Err, broken) {
		t.Errorf("expected the initial state to fail, got %v %v", result.Status, result.Err)
	}
	if len(result.States) != 0 {
		t.Errorf("expected no states, got %d", len(result.States))
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rng := rand.New(rand.NewPCG(1, 2))
	propose, density := ring(rng)
	calls := 0
	result := Run(ctx, 0, func(s int) (int, error) {
		calls++
		if calls == 20 {
			cancel()
		}
		return propose(s)
	}, density, Config[int]{Iterations: 1000, Rng: rng})
	if result.Status != Cancelled || !errors.Is(result.Err, context.Canceled) {
		t.Errorf("expected cancelled, got %v %v", result.Status, result.Err)
	}
	if result.Performance.Algorithm.Proposals != 20 {
		t.Errorf("expected 20 proposals, got %d", result.Performance.Algorithm.Proposals)
	}
}

func TestRunCorrection(t *testing.T) {
	propose := func(s int) (int, error) { return s + 1, nil }
	density := func(s int) (float64, error) { return 0, nil }
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations:   10,
		MaxProposals: 50,
		Rng:          rand.New(rand.NewPCG(1, 1)),
		Correction: func(from, to int) (float64, error) {
			return math.Inf(-1), nil
		},
	})
	if len(result.States) != 1 {
		t.Errorf("expected every move to be rejected, got %d states", len(result.States))
	}

	broken := errors.New("broken")
	result = Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 10,
		Correction: func(from, to int) (float64, error) {
			return 0, broken
		},
	})
	if result.Status != Failed || !errors.Is(result.Err, broken) {
		t.Errorf("expected failure wrapping %v, got %v %v", broken, result.Status, result.Err)
	}
}

func TestRunPerformance(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	propose, density := ring(rng)
	probe := &stubProbe{memory: []float64{10, 30, 20}}
	result := Run(context.Background(), 0, propose, density, Config[int]{
		Iterations: 40,
		Rng:        rng,
		Probe:      probe,
		Error:      func(s int) float64 { return float64(9 - s) },
	})
	perf := result.Performance
	if len(perf.Memory.Samples) != 40 || len(perf.CPU.Samples) != 40 || len(perf.Time.PerIteration) != 40 {
		t.Errorf("expected 40 samples, got %d memory %d cpu %d timings",
			len(perf.Memory.Samples), len(perf.CPU.Samples), len(perf.Time.PerIteration))
	}
	if perf.Memory.Start != 10 || perf.Memory.Peak != 30 {
		t.Errorf("expected memory start 10 and peak 30, got %f and %f", perf.Memory.Start, perf.Memory.Peak)
	}
	if perf.CPU.Samples[0] != 50 {
		t.Errorf("expected cpu 50, got %f", perf.CPU.Samples[0])
	}
	if perf.Time.Total <= 0 || perf.Time.End.Before(perf.Time.Start) {
		t.Errorf("expected a positive total time, got %v", perf.Time.Total)
	}
	if perf.Time.Proposal+perf.Time.Density > perf.Time.Total {
		t.Errorf("expected proposal and density time within the total")
	}
	if len(result.Errors) != 40 {
		t.Errorf("expected 40 errors, got %d", len(result.Errors))
	}
	expected := float64(perf.Algorithm.Accepted) / float64(perf.Algorithm.Proposals)
	if perf.Algorithm.AcceptRate != expected {
		t.Errorf("expected accept rate %f, got %f", expected, perf.Algorithm.AcceptRate)
	}
	best := math.Inf(1)
	for _, p := range result.LogProbs {
		best = min(best, -p)
	}
	if perf.Algorithm.BestEntropy != best {
		t.Errorf("expected best entropy %f, got %f", best, perf.Algorithm.BestEntropy)
	}
}

func TestStatusString(t *testing.T) {
	if Converged.String() != "converged" || Status(42).String() != "Status(42)" {
		t.Errorf("unexpected status names %q %q", Converged, Status(42))
	}
}
