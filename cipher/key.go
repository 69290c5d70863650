// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cipher models substitution keys, the states of a decipher chain,
// and the moves between them.
package cipher

import (
	"fmt"
	"math/rand/v2"

	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
)

const (
	// Alphabet is the set of letters a key permutes
	Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	// Size is the number of letters in the alphabet
	Size = len(Alphabet)
)

var position [128]int

func init() {
	for i := range position {
		position[i] = -1
	}
	for i := range Size {
		position[Alphabet[i]] = i
	}
}

// Position is the index of r in the alphabet
func Position(r rune) (int, bool) {
	if r < 0 || r >= 128 {
		return -1, false
	}
	p := position[r]
	return p, p >= 0
}

// Key maps the letter at each alphabet index to its image
type Key [Size]byte

// Identity is the key mapping every letter to itself
func Identity() Key {
	var k Key
	copy(k[:], Alphabet)
	return k
}

// Shuffled is a uniformly random key
func Shuffled(rng *rand.Rand) Key {
	k := Identity()
	rng.Shuffle(Size, func(i, j int) {
		k[i], k[j] = k[j], k[i]
	})
	return k
}

// ParseKey parses the images of the alphabet letters, in alphabet order
func ParseKey(s string) (Key, error) {
	var k Key
	if len(s) != Size {
		return k, fmt.Errorf("%w: key has %d letters, need %d", bigram.ErrInvalidInput, len(s), Size)
	}
	copy(k[:], s)
	if !k.Valid() {
		return k, fmt.Errorf("%w: key %q is not a permutation of the alphabet", bigram.ErrInvalidInput, s)
	}
	return k, nil
}

func (k Key) String() string {
	return string(k[:])
}

// Valid reports whether k is a bijection over the alphabet
func (k Key) Valid() bool {
	var used [Size]bool
	for _, c := range k {
		p, ok := Position(rune(c))
		if !ok || used[p] {
			return false
		}
		used[p] = true
	}
	return true
}

// Swap exchanges the images of the letters at i and j
func (k Key) Swap(i, j int) Key {
	k[i], k[j] = k[j], k[i]
	return k
}

// Inverse is the key undoing k, k must be valid
func (k Key) Inverse() Key {
	var inverse Key
	for i, c := range k {
		inverse[position[c]] = Alphabet[i]
	}
	return inverse
}

// Image is the letter r maps to, runes outside the alphabet map to themselves
func (k Key) Image(r rune) rune {
	if p, ok := Position(r); ok {
		return rune(k[p])
	}
	return r
}

// Apply maps text through k
func (k Key) Apply(text []rune) []rune {
	out := make([]rune, len(text))
	for i, value := range text {
		out[i] = k.Image(value)
	}
	return out
}
