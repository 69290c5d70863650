// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cipher

import (
	"github.com/zjscholnick/MCMC-Message-Decryption/bigram"
)

const (
	// Preview is the number of runes Pretty shows of a short preview
	Preview = 200
)

// State is a candidate decoding of a ciphertext
type State struct {
	Key    Key
	Cipher []rune
	Text   []rune
	Model  *bigram.Model
}

// NewState decodes cipher with key
func NewState(cipher []rune, model *bigram.Model, key Key) *State {
	return &State{
		Key:    key,
		Cipher: cipher,
		Text:   key.Apply(cipher),
		Model:  model,
	}
}

// With is the state for the same ciphertext decoded with key
func (s *State) With(key Key) *State {
	return NewState(s.Cipher, s.Model, key)
}

func (s *State) String() string {
	return string(s.Text)
}

// Pretty renders the decoded text, cut to a preview unless full is set
func Pretty(s *State, full bool) string {
	if full || len(s.Text) <= Preview {
		return string(s.Text)
	}
	return string(s.Text[:Preview])
}

// Density is the log density of states under their model
func Density(policy bigram.Policy) func(s *State) (float64, error) {
	return func(s *State) (float64, error) {
		return s.Model.LogDensity(s.Text, policy)
	}
}
