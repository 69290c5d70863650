// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
	"github.com/zjscholnick/MCMC-Message-Decryption/chains"
	"github.com/zjscholnick/MCMC-Message-Decryption/cipher"
	"github.com/zjscholnick/MCMC-Message-Decryption/mcmc"
	"github.com/zjscholnick/MCMC-Message-Decryption/report"
)

var (
	// FlagCorpus is the training corpus
	FlagCorpus = flag.String("i", "", "training corpus, plain text or .bz2")
	// FlagDecode is the text to decode
	FlagDecode = flag.String("d", "", "text to decode, or to encode in scramble mode")
	// FlagIterations is the number of accepted moves per chain
	FlagIterations = flag.Int("e", Defaults.Iterations, "accepted iterations per chain")
	// FlagTolerance is the acceptance rate under which a chain stops
	FlagTolerance = flag.Float64("t", Defaults.Tolerance, "acceptance rate tolerance")
	// FlagPrintEvery is the snapshot cadence
	FlagPrintEvery = flag.Int("p", Defaults.PrintEvery, "print a snapshot every p accepted iterations, 0 disables")
	// FlagMaxProposals bounds the proposals per chain
	FlagMaxProposals = flag.Int("max", Defaults.MaxProposals, "maximum proposals per chain, 0 is unbounded")
	// FlagChains is the number of chains
	FlagChains = flag.Int("n", Defaults.Chains, "number of chains")
	// FlagSeed seeds the chains
	FlagSeed = flag.Uint64("seed", Defaults.Seed, "random seed")
	// FlagProposal is the proposal generator
	FlagProposal = flag.String("proposal", Defaults.Proposal, "proposal: weighted or uniform")
	// FlagPolicy is the unknown character policy
	FlagPolicy = flag.String("policy", Defaults.Policy, "unknown character policy: floor, skip or strict")
	// FlagHastings enables the Hastings correction
	FlagHastings = flag.Bool("hastings", Defaults.Hastings, "correct the acceptance test for asymmetric proposals")
	// FlagKey is the starting key
	FlagKey = flag.String("key", Defaults.Key, "starting key, the images of "+cipher.Alphabet)
	// FlagRandom starts from random keys
	FlagRandom = flag.Bool("random", Defaults.Random, "start every chain from a random key")
	// FlagTop is the number of guesses printed
	FlagTop = flag.Int("top", Defaults.Top, "number of guesses to print")
	// FlagTimeout bounds the run
	FlagTimeout = flag.Duration("timeout", Defaults.Timeout, "stop the chains after this long, 0 is unbounded")
	// FlagChart is the entropy chart output
	FlagChart = flag.String("chart", Defaults.Chart, "write the entropy traces to this html file")
	// FlagMetrics is the metrics output
	FlagMetrics = flag.String("metrics", Defaults.Metrics, "write the metrics to this yaml file")
	// FlagConfig is the settings file
	FlagConfig = flag.String("config", "", "yaml settings file, flags override it")
	// FlagScramble is scramble mode
	FlagScramble = flag.Bool("scramble", false, "scramble mode")
)

// ScrambleMode encodes the text with a key and prints it
func ScrambleMode(settings Settings) {
	text, err := Read(settings.Decode)
	if err != nil {
		panic(err)
	}
	key := cipher.Shuffled(rand.New(rand.NewPCG(settings.Seed, 0)))
	if settings.Key != "" {
		key, err = cipher.ParseKey(settings.Key)
		if err != nil {
			panic(err)
		}
	}
	log.Printf("encoding key %s", key)
	log.Printf("decoding key %s", key.Inverse())
	fmt.Print(string(key.Apply([]rune(text))))
}

// Snapshot formats a snapshot of a chain with a preview of its decoding
func Snapshot(chain int, s mcmc.Snapshot[*cipher.State]) string {
	kind := "checkpoint"
	if s.Periodic {
		kind = "cadence"
	}
	return fmt.Sprintf("chain %d %s iteration %d entropy %.4f acceptance %.4f\n%s\n",
		chain, kind, s.Iteration, s.Entropy, s.Acceptance, cipher.Pretty(s.State, false))
}

// create writes a file with write
func create(path string, write func(io.Writer) error) {
	file, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer file.Close()
	if err := write(file); err != nil {
		panic(err)
	}
}

func main() {
	flag.Parse()

	settings, err := Resolve(*FlagConfig, flag.Visit)
	if err != nil {
		panic(err)
	}

	if *FlagScramble {
		if settings.Decode == "" {
			flag.Usage()
			os.Exit(1)
		}
		ScrambleMode(settings)
		return
	}

	if settings.Corpus == "" || settings.Decode == "" {
		fmt.Fprintln(os.Stderr, "Usage: decipher -i <input> -d <decode>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	config, err := settings.Config()
	if err != nil {
		panic(err)
	}

	corpus, err := Read(settings.Corpus)
	if err != nil {
		panic(err)
	}
	model, err := bigram.Build(corpus)
	if err != nil {
		panic(err)
	}
	ciphertext, err := Read(settings.Decode)
	if err != nil {
		panic(err)
	}
	log.Printf("corpus has %d characters, decoding %d runes with %d chains",
		model.Size(), len([]rune(ciphertext)), config.Chains)

	config.Probe = func() mcmc.Probe {
		probe, err := mcmc.NewProcessProbe()
		if err != nil {
			log.Println(err)
			return nil
		}
		return probe
	}
	config.Snapshot = func(chain int, s mcmc.Snapshot[*cipher.State]) {
		log.Print(Snapshot(chain, s))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	cpuTime := func() float64 { return 0 }
	if probe, err := mcmc.NewProcessProbe(); err == nil {
		cpuTime = probe.CPUTime
	}
	start, cpu := time.Now(), cpuTime()
	runs := chains.Run(ctx, model, []rune(ciphertext), config)
	runtime, cpu := time.Since(start), cpuTime()-cpu

	if failures := chains.Failures(runs); failures != "" {
		log.Printf("failed chains:\n%s", failures)
	}
	guesses := chains.Best(chains.Rank(runs), settings.Top)
	summary := report.Summarize(runtime, cpu, runs)
	if err := report.Write(os.Stdout, guesses, summary); err != nil {
		panic(err)
	}

	if settings.Chart != "" {
		create(settings.Chart, func(w io.Writer) error {
			return report.Chart(w, runs)
		})
	}
	if settings.Metrics != "" {
		create(settings.Metrics, func(w io.Writer) error {
			return report.WriteMetrics(w, report.NewMetrics(summary, runs))
		})
	}
}
