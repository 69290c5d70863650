// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zjscholnick/MCMC-Message-Decryption/chains"
	"github.com/zjscholnick/MCMC-Message-Decryption/mcmc"
)

// Record is the metrics record of one chain
type Record struct {
	ID          string           `yaml:"id"`
	Index       int              `yaml:"index"`
	Status      string           `yaml:"status"`
	Error       string           `yaml:"error,omitempty"`
	Key         string           `yaml:"key,omitempty"`
	Performance mcmc.Performance `yaml:"performance"`
}

// Metrics is the metrics dump of a run
type Metrics struct {
	Summary Summary  `yaml:"summary"`
	Chains  []Record `yaml:"chains"`
}

// NewMetrics collects the metrics of the chains, the key of a record is the
// last key of its trajectory
func NewMetrics(summary Summary, runs []chains.Chain) Metrics {
	metrics := Metrics{Summary: summary}
	for _, c := range runs {
		record := Record{
			ID:          c.ID,
			Index:       c.Index,
			Status:      c.Result.Status.String(),
			Performance: c.Result.Performance,
		}
		if c.Result.Err != nil {
			record.Error = c.Result.Err.Error()
		}
		if states := c.Result.States; len(states) > 0 {
			record.Key = states[len(states)-1].Key.String()
		}
		metrics.Chains = append(metrics.Chains, record)
	}
	return metrics
}

// WriteMetrics writes the metrics as yaml
func WriteMetrics(w io.Writer, metrics Metrics) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(metrics); err != nil {
		return err
	}
	return encoder.Close()
}
