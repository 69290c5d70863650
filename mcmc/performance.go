// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcmc

import (
	"math"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// Probe samples the resources of the running process
type Probe interface {
	// SampleMemory is the resident memory in MB
	SampleMemory() float64
	// SampleCPU is the CPU utilization of the process in percent since the
	// last sample, chains running in one process see each other's work
	SampleCPU() float64
}

type nopProbe struct{}

func (nopProbe) SampleMemory() float64 { return 0 }
func (nopProbe) SampleCPU() float64    { return 0 }

// ProcessProbe probes the current process
type ProcessProbe struct {
	process *process.Process
}

// NewProcessProbe creates a probe for the current process
func NewProcessProbe() (*ProcessProbe, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessProbe{process: p}, nil
}

// SampleMemory is the resident memory in MB, 0 if it can't be read
func (p *ProcessProbe) SampleMemory() float64 {
	info, err := p.process.MemoryInfo()
	if err != nil {
		return 0
	}
	return float64(info.RSS) / (1024 * 1024)
}

// CPUTime is the user and system CPU time of the process in core seconds, 0
// if it can't be read. Every chain of a process shares it.
func (p *ProcessProbe) CPUTime() float64 {
	times, err := p.process.Times()
	if err != nil {
		return 0
	}
	return times.User + times.System
}

// SampleCPU is the CPU utilization of the whole process since the last call,
// 0 on the first call
func (p *ProcessProbe) SampleCPU() float64 {
	percent, err := p.process.Percent(0)
	if err != nil {
		return 0
	}
	return percent
}

// Timing is the time spent on one accepted iteration
type Timing struct {
	Proposal time.Duration `yaml:"proposal"`
	Density  time.Duration `yaml:"density"`
}

// Times records where a run spent its time
type Times struct {
	Start        time.Time     `yaml:"start"`
	End          time.Time     `yaml:"end"`
	Total        time.Duration `yaml:"total"`
	Proposal     time.Duration `yaml:"proposal"`
	Density      time.Duration `yaml:"density"`
	PerIteration []Timing      `yaml:"-"`
}

// Memory records the memory use of a run in MB
type Memory struct {
	Start   float64   `yaml:"start"`
	Peak    float64   `yaml:"peak"`
	End     float64   `yaml:"end"`
	Samples []float64 `yaml:"-"`
}

// Algorithm records the counters of a run
type Algorithm struct {
	Iterations  int     `yaml:"iterations"`
	Proposals   int     `yaml:"proposals"`
	Accepted    int     `yaml:"accepted"`
	AcceptRate  float64 `yaml:"accept_rate"`
	BestEntropy float64 `yaml:"best_entropy"`
}

// CPU records the CPU samples of a run in percent
type CPU struct {
	Samples []float64 `yaml:"-"`
}

// Performance is the performance record of one run
type Performance struct {
	Time      Times     `yaml:"time"`
	Memory    Memory    `yaml:"memory"`
	Algorithm Algorithm `yaml:"algorithm"`
	CPU       CPU       `yaml:"cpu"`
}

func newPerformance(probe Probe) Performance {
	memory := probe.SampleMemory()
	probe.SampleCPU()
	return Performance{
		Time: Times{
			Start: time.Now(),
		},
		Memory: Memory{
			Start: memory,
			Peak:  memory,
		},
		Algorithm: Algorithm{
			BestEntropy: math.Inf(1),
		},
	}
}

// sample records the resources after an accepted iteration
func (p *Performance) sample(probe Probe, timing Timing) {
	memory := probe.SampleMemory()
	p.Memory.Samples = append(p.Memory.Samples, memory)
	p.Memory.Peak = max(p.Memory.Peak, memory)
	p.CPU.Samples = append(p.CPU.Samples, probe.SampleCPU())
	p.Time.PerIteration = append(p.Time.PerIteration, timing)
}

func (p *Performance) finish(probe Probe) {
	p.Time.End = time.Now()
	p.Time.Total = p.Time.End.Sub(p.Time.Start)
	p.Memory.End = probe.SampleMemory()
	p.Algorithm.AcceptRate = float64(p.Algorithm.Accepted) / float64(max(1, p.Algorithm.Proposals))
}
