package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/neardup/pkg/partition"
	"github.com/Sumatoshi-tech/neardup/pkg/report"
)

func TestRenderPlan(t *testing.T) {
	t.Parallel()

	plan, err := partition.NewPlan(10, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	report.RenderPlan(&buf, plan)

	out := buf.String()
	assert.Contains(t, out, "10 documents on 3 ranks")
	assert.Contains(t, out, "[0,4)")
	assert.Contains(t, out, "45")
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	s := &report.Summary{
		RunID:  "abc",
		Corpus: report.SummaryCorpus{Docs: 4},
		Totals: report.SummaryTotals{Comparisons: 1234567, Matches: 2},
		Ranks: []report.RankSummary{
			{Rank: 0, Shard: "[0,2)", Comparisons: "5", Matches: 1},
			{Rank: 1, Shard: "[2,4)", Comparisons: "1", Matches: 1},
		},
	}

	var buf bytes.Buffer
	report.RenderSummary(&buf, s)

	out := buf.String()
	assert.Contains(t, out, "run abc")
	assert.Contains(t, out, "[2,4)")
	assert.Contains(t, out, "1,234,567")
}

func TestPlotPlan(t *testing.T) {
	t.Parallel()

	plan, err := partition.NewPlan(100, 4)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, report.PlotPlan(&buf, plan))

	out := buf.String()
	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "Comparison ranges")
	assert.Contains(t, out, "rank 3")
}
