package engine

import (
	"time"

	"github.com/Sumatoshi-tech/neardup/pkg/report"
)

func buildSummary(res *Result, started time.Time) *report.Summary {
	p := res.Params

	s := &report.Summary{
		RunID:     p.RunID,
		StartedAt: started.UTC(),
		Duration:  res.Duration,
		Report:    p.Report,
		Corpus: report.SummaryCorpus{
			Directory: p.Directory,
			Offset:    p.Offset,
			Docs:      p.Plan.Docs,
		},
		MinHash: report.SummaryMinHash{
			ShingleSize:   p.ShingleSize,
			SignatureSize: p.SignatureSize,
			BandRows:      p.BandRows,
			Seed:          p.Seed,
			Threshold:     p.Threshold,
		},
		Cluster: report.SummaryCluster{
			Workers:     p.Plan.Workers,
			Strategy:    p.ExchangeStrategy().String(),
			Compression: p.Compression,
		},
	}

	for _, rs := range res.Ranks {
		s.Totals.Shingles += rs.Shingles
		s.Totals.Comparisons += rs.Comparisons
		s.Totals.Candidates += rs.Candidates
		s.Totals.Matches += rs.Matches
		s.Totals.BytesExchanged += rs.BytesSent + rs.BytesReceived

		s.Ranks = append(s.Ranks, report.RankSummary{
			Rank:        rs.Rank,
			Shard:       rs.Shard.String(),
			Comparisons: report.FormatCount(rs.Comparisons),
			Matches:     rs.Matches,
			Phases:      rs.Phases,
		})
	}

	s.Humanize()

	return s
}
