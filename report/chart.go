// Copyright 2026 The Decipher Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/zjscholnick/MCMC-Message-Decryption/chains"
)

// Points is the maximum number of points plotted per trace
const Points = 1000

// trace is the entropy of every stride-th accepted state of a chain
func trace(c chains.Chain, stride int) []opts.LineData {
	var points []opts.LineData
	for i := 0; i < len(c.Result.LogProbs); i += stride {
		points = append(points, opts.LineData{Value: -c.Result.LogProbs[i]})
	}
	return points
}

// Traces builds the entropy trace chart of the chains
func Traces(runs []chains.Chain) *charts.Line {
	longest := 0
	for _, c := range runs {
		longest = max(longest, len(c.Result.LogProbs))
	}
	stride := max(1, (longest+Points-1)/Points)
	x := make([]string, 0, longest/stride+1)
	for i := 0; i < longest; i += stride {
		x = append(x, strconv.Itoa(i))
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Entropy",
			Subtitle: fmt.Sprintf("%d chains, every %d accepted states", len(runs), stride),
		}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Decipher", Width: "1200px", Height: "600px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "accepted"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "entropy"}),
	)
	line.SetXAxis(x)
	for _, c := range runs {
		line.AddSeries(fmt.Sprintf("chain %d (%s)", c.Index, c.Result.Status), trace(c, stride))
	}
	return line
}

// Chart renders the entropy traces of the chains as an html page
func Chart(w io.Writer, runs []chains.Chain) error {
	page := components.NewPage().SetPageTitle("Decipher")
	page.AddCharts(Traces(runs))
	return page.Render(w)
}
