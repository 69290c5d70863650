// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// ErrEmptyAlphabet is returned when a weighted swap has no letters to weigh
var ErrEmptyAlphabet = errors.New("empty alphabet")

// Proposer proposes a neighbor of a state
type Proposer interface {
	Propose(s *State) (*State, error)
}

// Corrector is a proposer that knows its proposal ratio,
// log q(to -> from) - log q(from -> to)
type Corrector interface {
	LogProposalRatio(from, to *State) (float64, error)
}

// Uniform swaps the images of two distinct letters drawn uniformly from the alphabet
type Uniform struct {
	Rng *rand.Rand
}

// Propose proposes a neighbor of s
func (u Uniform) Propose(s *State) (*State, error) {
	i := u.Rng.IntN(Size)
	j := u.Rng.IntN(Size - 1)
	if j >= i {
		j++
	}
	return s.With(s.Key.Swap(i, j)), nil
}

// LogProposalRatio is zero, a uniform swap is its own reverse
func (u Uniform) LogProposalRatio(from, to *State) (float64, error) {
	return 0, nil
}

// Weighted swaps the images of two letters, favoring letters whose frequency
// in the decoded text strays from their frequency in the training corpus
type Weighted struct {
	rng      *rand.Rand
	letters  []int
	slot     [Size]int
	expected []float64
	pairs    [][2]int
}

// NewWeighted creates a weighted proposer over the letters of the model's corpus
func NewWeighted(model *bigram.Model, rng *rand.Rand) *Weighted {
	w := &Weighted{rng: rng}
	total := floats.Sum(model.Frequency)
	for i := range Size {
		w.slot[i] = -1
		index, ok := model.Lookup(rune(Alphabet[i]))
		if !ok {
			continue
		}
		w.slot[i] = len(w.letters)
		w.letters = append(w.letters, i)
		w.expected = append(w.expected, model.Frequency[index]/total)
	}
	for i := range w.letters {
		for j := i + 1; j < len(w.letters); j++ {
			w.pairs = append(w.pairs, [2]int{i, j})
		}
	}
	return w
}

// Letters is the number of letters the proposer swaps between
func (w *Weighted) Letters() int {
	return len(w.letters)
}

// Distribution is the probability of proposing each pair for a decoded text.
// When every weight is zero the pairs are equally likely.
func (w *Weighted) Distribution(text []rune) ([]float64, error) {
	if len(w.pairs) == 0 {
		return nil, fmt.Errorf("%w: %d letters of the training corpus are in the alphabet", ErrEmptyAlphabet, len(w.letters))
	}

	counts := make([]float64, len(w.letters))
	total := 0.0
	for _, value := range text {
		p, ok := Position(value)
		if !ok || w.slot[p] < 0 {
			continue
		}
		counts[w.slot[p]]++
		total++
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: decoded text has no letters of the training corpus", ErrEmptyAlphabet)
	}

	diffs := make([]float64, len(w.letters))
	for i := range diffs {
		diffs[i] = math.Abs(counts[i]/total - w.expected[i])
	}
	probs := make([]float64, len(w.pairs))
	for k, pair := range w.pairs {
		probs[k] = diffs[pair[0]] + diffs[pair[1]]
	}
	sum := floats.Sum(probs)
	if sum == 0 {
		for k := range probs {
			probs[k] = 1
		}
		sum = float64(len(probs))
	}
	floats.Scale(1/sum, probs)
	return probs, nil
}

// Propose proposes a neighbor of s
func (w *Weighted) Propose(s *State) (*State, error) {
	probs, err := w.Distribution(s.Text)
	if err != nil {
		return nil, err
	}
	k, ok := sampleuv.NewWeighted(probs, w.rng).Take()
	if !ok {
		return nil, fmt.Errorf("%w: no pair could be drawn", ErrEmptyAlphabet)
	}
	pair := w.pairs[k]
	return s.With(s.Key.Swap(w.letters[pair[0]], w.letters[pair[1]])), nil
}

// LogProposalRatio is log q(to -> from) - log q(from -> to) for a swap
// proposed by w
func (w *Weighted) LogProposalRatio(from, to *State) (float64, error) {
	k, err := w.pair(from.Key, to.Key)
	if err != nil {
		return 0, err
	}
	forward, err := w.Distribution(from.Text)
	if err != nil {
		return 0, err
	}
	reverse, err := w.Distribution(to.Text)
	if err != nil {
		return 0, err
	}
	return math.Log(reverse[k]) - math.Log(forward[k]), nil
}

// pair is the index of the pair swapped between two keys
func (w *Weighted) pair(a, b Key) (int, error) {
	changed := make([]int, 0, 2)
	for i := range a {
		if a[i] != b[i] {
			changed = append(changed, i)
		}
	}
	if len(changed) != 2 {
		return 0, fmt.Errorf("%w: keys differ in %d letters, a swap changes 2", bigram.ErrInvalidInput, len(changed))
	}
	i, j := w.slot[changed[0]], w.slot[changed[1]]
	if i < 0 || j < 0 {
		return 0, fmt.Errorf("%w: swapped letters are not in the training corpus", bigram.ErrInvalidInput)
	}
	n := len(w.letters)
	return i*(2*n-i-1)/2 + (j - i - 1), nil
}
