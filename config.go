// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
	"github.com/zjscholnick/MCMC-Message-Decryption/chains"
	"github.com/zjscholnick/MCMC-Message-Decryption/cipher"
)

// Settings are the settings of a run
type Settings struct {
	Corpus       string        `yaml:"corpus"`
	Decode       string        `yaml:"decode"`
	Iterations   int           `yaml:"iterations"`
	Tolerance    float64       `yaml:"tolerance"`
	PrintEvery   int           `yaml:"print_every"`
	MaxProposals int           `yaml:"max_proposals"`
	Chains       int           `yaml:"chains"`
	Seed         uint64        `yaml:"seed"`
	Proposal     string        `yaml:"proposal"`
	Policy       string        `yaml:"policy"`
	Hastings     bool          `yaml:"hastings"`
	Key          string        `yaml:"key"`
	Random       bool          `yaml:"random"`
	Top          int           `yaml:"top"`
	Timeout      time.Duration `yaml:"timeout"`
	Chart        string        `yaml:"chart"`
	Metrics      string        `yaml:"metrics"`
}

// Defaults are the default settings
var Defaults = Settings{
	Iterations: 5000,
	Tolerance:  0.02,
	PrintEvery: 10000,
	Chains:     3,
	Seed:       1,
	Proposal:   string(chains.Weighted),
	Policy:     bigram.Floor.String(),
	Top:        3,
}

// Load reads the settings in a yaml file over the defaults
func Load(path string) (Settings, error) {
	settings := Defaults
	data, err := os.ReadFile(path)
	if err != nil {
		return settings, err
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("%w: %s: %v", bigram.ErrInvalidInput, path, err)
	}
	return settings, nil
}

// Resolve loads the settings from path, if any, then applies the flags
// visited by visit over them
func Resolve(path string, visit func(func(*flag.Flag))) (Settings, error) {
	settings := Defaults
	if path != "" {
		var err error
		settings, err = Load(path)
		if err != nil {
			return settings, err
		}
	}
	var err error
	visit(func(f *flag.Flag) {
		if err == nil {
			err = settings.Set(f.Name, f.Value.String())
		}
	})
	return settings, err
}

// Set sets the setting of the command line flag name
func (s *Settings) Set(name, value string) error {
	var err error
	switch name {
	case "i":
		s.Corpus = value
	case "d":
		s.Decode = value
	case "e":
		s.Iterations, err = strconv.Atoi(value)
	case "t":
		s.Tolerance, err = strconv.ParseFloat(value, 64)
	case "p":
		s.PrintEvery, err = strconv.Atoi(value)
	case "max":
		s.MaxProposals, err = strconv.Atoi(value)
	case "n":
		s.Chains, err = strconv.Atoi(value)
	case "seed":
		s.Seed, err = strconv.ParseUint(value, 10, 64)
	case "proposal":
		s.Proposal = value
	case "policy":
		s.Policy = value
	case "hastings":
		s.Hastings, err = strconv.ParseBool(value)
	case "key":
		s.Key = value
	case "random":
		s.Random, err = strconv.ParseBool(value)
	case "top":
		s.Top, err = strconv.Atoi(value)
	case "timeout":
		s.Timeout, err = time.ParseDuration(value)
	case "chart":
		s.Chart = value
	case "metrics":
		s.Metrics = value
	}
	if err != nil {
		return fmt.Errorf("%w: flag -%s: %v", bigram.ErrInvalidInput, name, err)
	}
	return nil
}

// Config validates the settings and converts them into the configuration
// of the chains
func (s *Settings) Config() (chains.Config, error) {
	config := chains.Config{
		Chains:       s.Chains,
		Seed:         s.Seed,
		Iterations:   s.Iterations,
		Tolerance:    s.Tolerance,
		Cadence:      s.PrintEvery,
		MaxProposals: s.MaxProposals,
		Proposal:     chains.Proposal(s.Proposal),
		Hastings:     s.Hastings,
		Random:       s.Random,
	}
	if s.Iterations <= 0 {
		return config, fmt.Errorf("%w: iterations must be positive, got %d", bigram.ErrInvalidInput, s.Iterations)
	}
	if s.Chains <= 0 {
		return config, fmt.Errorf("%w: chains must be positive, got %d", bigram.ErrInvalidInput, s.Chains)
	}
	if s.Tolerance <= 0 || s.Tolerance >= 1 {
		return config, fmt.Errorf("%w: tolerance must be in (0, 1), got %f", bigram.ErrInvalidInput, s.Tolerance)
	}
	switch config.Proposal {
	case chains.Weighted, chains.Uniform:
	default:
		return config, fmt.Errorf("%w: unknown proposal %q", bigram.ErrInvalidInput, s.Proposal)
	}
	policy, err := bigram.ParsePolicy(s.Policy)
	if err != nil {
		return config, err
	}
	config.Policy = policy
	if s.Key != "" {
		key, err := cipher.ParseKey(s.Key)
		if err != nil {
			return config, err
		}
		config.Key = key
	}
	return config, nil
}
