package engine

import (
	"encoding/json"
	"fmt"

	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/exchange"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
)

// Params is the job description rank 0 announces to every rank. Workers
// run with these values regardless of their own configuration.
type Params struct {
	RunID         string          `json:"run_id"`
	Directory     string          `json:"directory"`
	Offset        int             `json:"offset"`
	ShingleSize   int             `json:"shingle_size"`
	SignatureSize int             `json:"signature_size"`
	BandRows      int             `json:"band_rows"`
	Seed          uint32          `json:"seed"`
	Threshold     float64         `json:"threshold"`
	Strategy      string          `json:"strategy"`
	Compression   string          `json:"compression"`
	Report        string          `json:"report"`
	Summary       string          `json:"summary,omitempty"`
	KeepParts     bool            `json:"keep_parts"`
	Verbose       int             `json:"verbose"`
	Plan          *partition.Plan `json:"plan"`
}

// paramsFromConfig copies the job settings of cfg. The run id and plan are
// filled in by the caller.
func paramsFromConfig(cfg *config.Config) *Params {
	return &Params{
		Directory:     cfg.Corpus.Directory,
		Offset:        cfg.Corpus.Offset,
		ShingleSize:   cfg.MinHash.ShingleSize,
		SignatureSize: cfg.MinHash.SignatureSize,
		BandRows:      cfg.MinHash.BandRows,
		Seed:          cfg.MinHash.Seed,
		Threshold:     cfg.Compare.Threshold,
		Strategy:      cfg.Cluster.Strategy,
		Compression:   cfg.Cluster.Compression,
		Report:        cfg.Output.Report,
		Summary:       cfg.Output.Summary,
		KeepParts:     cfg.Output.KeepParts,
		Verbose:       cfg.Logging.Verbose,
	}
}

// NumBands returns the band count of the job.
func (p *Params) NumBands() int {
	return p.SignatureSize / p.BandRows
}

// ExchangeStrategy returns the parsed strategy.
func (p *Params) ExchangeStrategy() exchange.Strategy {
	s, _ := exchange.ParseStrategy(p.Strategy)

	return s
}

func encodeParams(p *Params) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode job: %w", err)
	}

	return data, nil
}

func decodeParams(data []byte, size int) (*Params, error) {
	var p Params

	err := json.Unmarshal(data, &p)
	if err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	if p.Plan == nil || p.Plan.Workers != size || len(p.Plan.Shards) != size || len(p.Plan.Comparisons) != size {
		return nil, fmt.Errorf("%w: plan does not match %d ranks", ErrBadAnnounce, size)
	}

	if p.SignatureSize <= 0 || p.BandRows <= 0 || p.ShingleSize <= 0 {
		return nil, fmt.Errorf("%w: invalid sketch parameters", ErrBadAnnounce)
	}

	return &p, nil
}
