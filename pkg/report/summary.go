package report

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Summary describes a finished run.
type Summary struct {
	RunID     string        `yaml:"run_id"`
	StartedAt time.Time     `yaml:"started_at"`
	Duration  time.Duration `yaml:"duration"`
	Report    string        `yaml:"report"`

	Corpus  SummaryCorpus  `yaml:"corpus"`
	MinHash SummaryMinHash `yaml:"minhash"`
	Cluster SummaryCluster `yaml:"cluster"`
	Totals  SummaryTotals  `yaml:"totals"`
	Ranks   []RankSummary  `yaml:"ranks,omitempty"`
}

// SummaryCorpus describes the documents of a run.
type SummaryCorpus struct {
	Directory string `yaml:"directory"`
	Offset    int    `yaml:"offset"`
	Docs      int    `yaml:"docs"`
}

// SummaryMinHash holds the sketch parameters.
type SummaryMinHash struct {
	ShingleSize   int     `yaml:"shingle_size"`
	SignatureSize int     `yaml:"signature_size"`
	BandRows      int     `yaml:"band_rows"`
	Seed          uint32  `yaml:"seed"`
	Threshold     float64 `yaml:"threshold"`
}

// SummaryCluster holds the topology of a run.
type SummaryCluster struct {
	Workers     int    `yaml:"workers"`
	Strategy    string `yaml:"strategy"`
	Compression string `yaml:"compression"`
}

// SummaryTotals aggregates counters across ranks.
type SummaryTotals struct {
	Shingles       int64  `yaml:"shingles"`
	Comparisons    int64  `yaml:"comparisons"`
	Candidates     int64  `yaml:"candidates"`
	Matches        int64  `yaml:"matches"`
	BytesExchanged int64  `yaml:"bytes_exchanged"`
	Exchanged      string `yaml:"exchanged"`
}

// RankSummary holds the work done by one rank.
type RankSummary struct {
	Rank        int                      `yaml:"rank"`
	Shard       string                   `yaml:"shard"`
	Comparisons string                   `yaml:"comparisons"`
	Matches     int64                    `yaml:"matches"`
	Phases      map[string]time.Duration `yaml:"phases,omitempty"`
}

// Humanize fills the human-readable fields from the raw counters.
func (s *Summary) Humanize() {
	s.Totals.Exchanged = humanize.Bytes(uint64(max(s.Totals.BytesExchanged, 0)))
}

// FormatCount renders a large counter with thousands separators.
func FormatCount(n int64) string {
	return humanize.Comma(n)
}

// WriteSummary writes s as YAML to path.
func WriteSummary(fs afero.Fs, path string, s *Summary) error {
	s.Humanize()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("report: encode summary: %w", err)
	}

	err = afero.WriteFile(fs, path, data, os.FileMode(0o644))
	if err != nil {
		return fmt.Errorf("report: write summary %s: %w", path, err)
	}

	return nil
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(fs afero.Fs, path string) (*Summary, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("report: read summary %s: %w", path, err)
	}

	var s Summary

	err = yaml.Unmarshal(data, &s)
	if err != nil {
		return nil, fmt.Errorf("report: decode summary %s: %w", path, err)
	}

	return &s, nil
}
