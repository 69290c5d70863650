// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bigram

import (
	"fmt"
	"strings"
)

// Policy says how pairs touching a rune outside the model are scored
type Policy int

const (
	// Floor scores such a pair as the least likely transition in the table
	Floor Policy = iota
	// Skip leaves such a pair out of the sum
	Skip
	// Strict fails with ErrUnknownCharacter
	Strict
)

var policies = [...]string{
	Floor:  "floor",
	Skip:   "skip",
	Strict: "strict",
}

func (p Policy) String() string {
	if p < 0 || int(p) >= len(policies) {
		return fmt.Sprintf("Policy(%d)", int(p))
	}
	return policies[p]
}

// ParsePolicy parses a policy name
func ParsePolicy(name string) (Policy, error) {
	for i, value := range policies {
		if strings.EqualFold(name, value) {
			return Policy(i), nil
		}
	}
	return Floor, fmt.Errorf("%w: unknown policy %q", ErrInvalidInput, name)
}

// LogDensity is the log probability of text under the model, the sum of the
// log transition probabilities of its adjacent runes
func (m *Model) LogDensity(text []rune, policy Policy) (float64, error) {
	n := m.Size()
	sum, previous, known := 0.0, 0, false
	for i, value := range text {
		index, ok := m.Lookup(value)
		if !ok && policy == Strict {
			return 0, fmt.Errorf("%w: %q at offset %d", ErrUnknownCharacter, value, i)
		}
		if i > 0 {
			switch {
			case ok && known:
				sum += m.log[previous*n+index]
			case policy == Floor:
				sum += m.floor
			}
		}
		previous, known = index, ok
	}
	return sum, nil
}

// Entropy is the negated log density
func (m *Model) Entropy(text []rune, policy Policy) (float64, error) {
	density, err := m.LogDensity(text, policy)
	return -density, err
}
