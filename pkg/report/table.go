package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

// RenderSummary writes the per-rank breakdown and totals of s as a table.
func RenderSummary(w io.Writer, s *Summary) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("run %s", s.RunID)
	tbl.AppendHeader(table.Row{"Rank", "Shard", "Comparisons", "Matches"})

	for _, r := range s.Ranks {
		tbl.AppendRow(table.Row{r.Rank, r.Shard, r.Comparisons, FormatCount(r.Matches)})
	}

	tbl.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("%d docs", s.Corpus.Docs),
		FormatCount(s.Totals.Comparisons),
		FormatCount(s.Totals.Matches),
	})
	tbl.SetColumnConfigs(rightAligned(2, 3, 4))
	tbl.Render()
}

// RenderPlan writes the work split of p as a table.
func RenderPlan(w io.Writer, p *partition.Plan) {
	loads := p.PairLoads()

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("%d documents on %d ranks, pair imbalance %.2f", p.Docs, p.Workers, p.Imbalance())
	tbl.AppendHeader(table.Row{"Rank", "Shard", "Docs", "Rows", "Pairs"})

	for rank, shard := range p.Shards {
		tbl.AppendRow(table.Row{
			rank,
			shard.String(),
			shard.Len(),
			p.Comparisons[rank].String(),
			FormatCount(loads[rank]),
		})
	}

	tbl.AppendFooter(table.Row{"", "", strconv.Itoa(p.Docs), "", FormatCount(partition.PairCount(p.Docs))})
	tbl.SetColumnConfigs(rightAligned(3, 5))
	tbl.Render()
}

func rightAligned(columns ...int) []table.ColumnConfig {
	cfgs := make([]table.ColumnConfig, 0, len(columns))
	for _, n := range columns {
		cfgs = append(cfgs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}

	return cfgs
}
