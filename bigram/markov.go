// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bigram builds character transition statistics from a training
// corpus and scores text against them.
package bigram

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/pointlander/gradient/tf64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// Prior is the Laplace count every transition starts with
	Prior = 1.0
)

var (
	// ErrInvalidInput is returned for input a model can't be built from
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnknownCharacter is returned when strict scoring meets a rune the model never saw
	ErrUnknownCharacter = errors.New("unknown character")
)

// Model is a bigram model of a training corpus
type Model struct {
	// Index maps each corpus rune to its row
	Index map[rune]int
	// Chars is the inverse of Index
	Chars []rune
	// Table holds the probability that column follows row
	Table *mat.Dense
	// Frequency holds the number of times each rune occurs
	Frequency []float64

	ascii [128]int
	log   []float64
	floor float64
	total float64
}

// Build builds a model from a corpus
func Build(corpus string) (*Model, error) {
	data := []rune(corpus)
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: corpus has %d characters, need at least 2", ErrInvalidInput, len(data))
	}

	seen := make(map[rune]bool)
	chars := make([]rune, 0, 8)
	for _, value := range data {
		if !seen[value] {
			seen[value] = true
			chars = append(chars, value)
		}
	}
	slices.Sort(chars)

	m := &Model{
		Index: make(map[rune]int, len(chars)),
		Chars: chars,
	}
	for i := range m.ascii {
		m.ascii[i] = -1
	}
	for i, value := range chars {
		m.Index[value] = i
		if value < 128 {
			m.ascii[value] = i
		}
	}

	n := len(chars)
	counts := make([]float64, n*n)
	for i := range counts {
		counts[i] = Prior
	}
	m.Frequency = make([]float64, n)
	for i, value := range data[:len(data)-1] {
		a, b := m.Index[value], m.Index[data[i+1]]
		counts[a*n+b]++
		m.Frequency[a]++
	}
	m.Frequency[m.Index[data[len(data)-1]]]++
	m.total = floats.Sum(m.Frequency)

	m.Table = mat.NewDense(n, n, normalize(counts, n))
	m.log = make([]float64, n*n)
	m.floor = math.Inf(1)
	for i := range n {
		for j := range n {
			l := math.Log(m.Table.At(i, j))
			m.log[i*n+j] = l
			if l < m.floor {
				m.floor = l
			}
		}
	}
	return m, nil
}

// normalize turns each row of counts into a distribution with a softmax of the log counts
func normalize(counts []float64, n int) []float64 {
	set := tf64.NewSet()
	set.Add("counts", n, n)
	w := set.ByName["counts"]
	for _, value := range counts {
		w.X = append(w.X, math.Log(value))
	}

	table := make([]float64, 0, len(counts))
	tf64.Softmax(set.Get("counts"))(func(a *tf64.V) bool {
		table = append(table, a.X...)
		return true
	})

	// the softmax is shifted by the global max, rescaling keeps every row exact
	for i := 0; i < len(table); i += n {
		row := table[i : i+n]
		floats.Scale(1/floats.Sum(row), row)
	}
	return table
}

// Size is the number of distinct runes in the corpus
func (m *Model) Size() int {
	return len(m.Chars)
}

// Lookup looks a rune up
func (m *Model) Lookup(r rune) (int, bool) {
	if r >= 0 && r < 128 {
		index := m.ascii[r]
		return index, index >= 0
	}
	index, ok := m.Index[r]
	return index, ok
}

// Probability is the probability that b follows a
func (m *Model) Probability(a, b rune) float64 {
	i, ok := m.Lookup(a)
	if !ok {
		return 0
	}
	j, ok := m.Lookup(b)
	if !ok {
		return 0
	}
	return m.Table.At(i, j)
}

// Expected is the relative frequency of r in the corpus
func (m *Model) Expected(r rune) float64 {
	i, ok := m.Lookup(r)
	if !ok || m.total == 0 {
		return 0
	}
	return m.Frequency[i] / m.total
}

// RowSums returns the sum of each row of the transition table
func (m *Model) RowSums() []float64 {
	n := m.Size()
	sums := make([]float64, n)
	for i := range n {
		sums[i] = floats.Sum(m.Table.RawRowView(i))
	}
	return sums
}
