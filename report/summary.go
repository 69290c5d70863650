// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report summarizes and renders the outcome of a set of chains
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/zjscholnick/MCMC-Message-Decryption/chains"
	"github.com/zjscholnick/MCMC-Message-Decryption/cipher"
)

// Width is the width of the separator lines
const Width = 80

// Run is the summary of one chain
type Run struct {
	Index       int           `yaml:"index"`
	ID          string        `yaml:"id"`
	Status      string        `yaml:"status"`
	Runtime     time.Duration `yaml:"runtime"`
	Iterations  int           `yaml:"iterations"`
	Proposals   int           `yaml:"proposals"`
	AcceptRate  float64       `yaml:"accept_rate"`
	BestEntropy float64       `yaml:"best_entropy"`
	// ProcessCPU is the mean process wide CPU utilization sampled by the chain
	ProcessCPU float64 `yaml:"process_cpu"`
	PeakMemory float64 `yaml:"peak_memory"`
}

// Summary is the summary of a set of chains
type Summary struct {
	Runtime    time.Duration `yaml:"runtime"`
	Iterations int           `yaml:"iterations"`
	Proposals  int           `yaml:"proposals"`
	Accepted   int           `yaml:"accepted"`
	AcceptRate float64       `yaml:"accept_rate"`
	Proposal   time.Duration `yaml:"proposal"`
	Density    time.Duration `yaml:"density"`
	Overhead   time.Duration `yaml:"overhead"`
	// Median and P95 are percentiles of the time of an accepted iteration in ms
	Median     float64 `yaml:"median_ms"`
	P95        float64 `yaml:"p95_ms"`
	PeakMemory float64 `yaml:"peak_memory"`
	// CPUTime is the CPU time of the process over the run in core seconds
	CPUTime     float64 `yaml:"cpu_time"`
	Utilization float64 `yaml:"utilization"`
	// ProcessCPU is the mean of the process wide utilization sampled by the chains
	ProcessCPU float64 `yaml:"process_cpu"`
	Runs       []Run   `yaml:"runs"`
}

// mean is the mean of the data or 0 when there is none
func mean(data []float64) float64 {
	m, err := stats.Mean(data)
	if err != nil {
		return 0
	}
	return m
}

// Summarize summarizes the chains, runtime is the wall time of the whole
// run and defaults to the longest chain, cpuTime is the CPU time the process
// used during the run in core seconds
func Summarize(runtime time.Duration, cpuTime float64, runs []chains.Chain) Summary {
	var (
		summary    Summary
		iterations []float64
		cpus       []float64
	)
	if runtime <= 0 {
		for _, c := range runs {
			runtime = max(runtime, c.Result.Performance.Time.Total)
		}
	}
	summary.Runtime = runtime
	summary.CPUTime = max(0, cpuTime)

	for _, c := range runs {
		p := c.Result.Performance
		summary.Iterations += p.Algorithm.Iterations
		summary.Proposals += p.Algorithm.Proposals
		summary.Accepted += p.Algorithm.Accepted
		summary.Proposal += p.Time.Proposal
		summary.Density += p.Time.Density
		summary.PeakMemory = max(summary.PeakMemory, p.Memory.Peak)
		for _, t := range p.Time.PerIteration {
			iterations = append(iterations, float64(t.Proposal+t.Density)/float64(time.Millisecond))
		}

		cpu := mean(p.CPU.Samples)
		cpus = append(cpus, cpu)
		summary.Runs = append(summary.Runs, Run{
			Index:       c.Index,
			ID:          c.ID,
			Status:      c.Result.Status.String(),
			Runtime:     p.Time.Total,
			Iterations:  p.Algorithm.Iterations,
			Proposals:   p.Algorithm.Proposals,
			AcceptRate:  p.Algorithm.AcceptRate,
			BestEntropy: p.Algorithm.BestEntropy,
			ProcessCPU:  cpu,
			PeakMemory:  p.Memory.Peak,
		})
	}
	summary.AcceptRate = float64(summary.Accepted) / float64(max(1, summary.Proposals))
	summary.Overhead = max(0, runtime-summary.Proposal-summary.Density)
	summary.ProcessCPU = mean(cpus)
	if runtime > 0 {
		summary.Utilization = summary.CPUTime / runtime.Seconds()
	}
	if median, err := stats.Percentile(iterations, 50); err == nil {
		summary.Median = median
	}
	if p95, err := stats.Percentile(iterations, 95); err == nil {
		summary.P95 = p95
	}
	return summary
}

// share is the percentage of the runtime spent in d
func (s Summary) share(d time.Duration) float64 {
	if s.Runtime <= 0 {
		return 0
	}
	return 100 * float64(d) / float64(s.Runtime)
}

// Write writes the best guesses followed by the summary
func Write(w io.Writer, guesses []chains.Guess, summary Summary) error {
	line := strings.Repeat("*", Width)
	var b strings.Builder
	fmt.Fprintf(&b, "\nBest Guesses:\n%s\n", line)
	for i, g := range guesses {
		fmt.Fprintf(&b, "\nGuess %d (chain %d, entropy=%.4f):\n\n", i+1, g.Chain, g.Entropy())
		fmt.Fprintln(&b, cipher.Pretty(g.State, true))
		fmt.Fprintln(&b, line)
	}

	fmt.Fprintf(&b, "\nOVERALL STATISTICS:\n")
	fmt.Fprintf(&b, "  Total runtime: %.2f s\n", summary.Runtime.Seconds())
	fmt.Fprintf(&b, "  Total iterations: %d\n", summary.Iterations)
	fmt.Fprintf(&b, "  Total proposals : %d\n", summary.Proposals)
	fmt.Fprintf(&b, "  Overall accept rate: %.2f%%\n", 100*summary.AcceptRate)

	fmt.Fprintf(&b, "\nTIME BREAKDOWN:\n")
	fmt.Fprintf(&b, "  Proposal fn: %.2fs (%.1f%%)\n", summary.Proposal.Seconds(), summary.share(summary.Proposal))
	fmt.Fprintf(&b, "  Density fn : %.2fs (%.1f%%)\n", summary.Density.Seconds(), summary.share(summary.Density))
	fmt.Fprintf(&b, "  Overhead   : %.2fs\n", summary.Overhead.Seconds())
	fmt.Fprintf(&b, "  Iteration  : median %.3fms p95 %.3fms\n", summary.Median, summary.P95)

	fmt.Fprintf(&b, "\nMEMORY USAGE:\n")
	fmt.Fprintf(&b, "  Peak memory: %.2f MB\n", summary.PeakMemory)

	fmt.Fprintf(&b, "\nCPU USAGE:\n")
	fmt.Fprintf(&b, "  Total CPU time used: %.3f core-seconds\n", summary.CPUTime)
	fmt.Fprintf(&b, "  Avg core utilization across all chains: %.3f cores\n", summary.Utilization)
	fmt.Fprintf(&b, "  Avg process CPU sampled by the chains: %.3f%%\n", summary.ProcessCPU)

	for _, run := range summary.Runs {
		fmt.Fprintf(&b, "\nRUN %d (%s):\n", run.Index+1, run.ID)
		fmt.Fprintf(&b, "  Status       : %s\n", run.Status)
		fmt.Fprintf(&b, "  Runtime      : %.2f s\n", run.Runtime.Seconds())
		fmt.Fprintf(&b, "  Iterations   : %d\n", run.Iterations)
		fmt.Fprintf(&b, "  Proposals    : %d\n", run.Proposals)
		fmt.Fprintf(&b, "  Accept rate  : %.2f%%\n", 100*run.AcceptRate)
		fmt.Fprintf(&b, "  Best entropy : %.4f\n", run.BestEntropy)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
