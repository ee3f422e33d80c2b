// Package engine runs one rank of a near-duplicate detection job.
//
// Every rank executes the same sequence of phases: announce, signatures,
// bands, exchange, compare and merge. Rank 0 plans the job, assembles the
// matrices and produces the final report; the transport behind the
// communicator decides whether ranks are goroutines or processes.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Sumatoshi-tech/neardup/pkg/alg/lsh"
	"github.com/Sumatoshi-tech/neardup/pkg/alg/minhash"
	"github.com/Sumatoshi-tech/neardup/pkg/alg/stats"
	"github.com/Sumatoshi-tech/neardup/pkg/comm"
	"github.com/Sumatoshi-tech/neardup/pkg/compare"
	"github.com/Sumatoshi-tech/neardup/pkg/config"
	"github.com/Sumatoshi-tech/neardup/pkg/corpus"
	"github.com/Sumatoshi-tech/neardup/pkg/exchange"
	"github.com/Sumatoshi-tech/neardup/pkg/matrix"
	"github.com/Sumatoshi-tech/neardup/pkg/observability"
	"github.com/Sumatoshi-tech/neardup/pkg/partition"
	"github.com/Sumatoshi-tech/neardup/pkg/report"
	"github.com/Sumatoshi-tech/neardup/pkg/shingle"
)

// Root is the coordinating rank.
const Root = exchange.Root

// Phase names.
const (
	PhaseAnnounce   = "announce"
	PhaseSignatures = "signatures"
	PhaseBands      = "bands"
	PhaseExchange   = "exchange"
	PhaseCompare    = "compare"
	PhaseMerge      = "merge"
)

// progressSmoothing weighs the latest progress interval in the logged rate.
const progressSmoothing = 0.3

// ErrBadAnnounce is returned when a rank receives an unusable job description.
var ErrBadAnnounce = errors.New("engine: bad job announcement")

// Options configures a rank.
type Options struct {
	// Config is required on rank 0; other ranks adopt the announced job.
	Config *config.Config

	// Fs holds the corpus and reports. Nil means the OS filesystem.
	Fs afero.Fs

	Logger  *slog.Logger
	Tracer  trace.Tracer
	Metrics *observability.JobMetrics

	// Status receives phase transitions for /status. Nil disables it.
	Status *observability.JobStatus
}

func (o *Options) normalize() {
	if o.Fs == nil {
		o.Fs = afero.NewOsFs()
	}

	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	if o.Tracer == nil {
		o.Tracer = nooptrace.NewTracerProvider().Tracer("neardup")
	}

	if o.Metrics == nil {
		o.Metrics = observability.NoopJobMetrics()
	}
}

// RankStats describes the work of one rank.
type RankStats struct {
	Rank          int                      `json:"rank"`
	Shard         partition.Range          `json:"shard"`
	Compare       partition.Range          `json:"compare"`
	Shingles      int64                    `json:"shingles"`
	Comparisons   int64                    `json:"comparisons"`
	Candidates    int64                    `json:"candidates"`
	Matches       int64                    `json:"matches"`
	BytesSent     int64                    `json:"bytes_sent"`
	BytesReceived int64                    `json:"bytes_received"`
	Phases        map[string]time.Duration `json:"phases"`
}

// Result is the outcome of a rank.
type Result struct {
	Params *Params
	Rank   RankStats
	// Ranks holds every rank's stats on rank 0 and is nil elsewhere.
	Ranks []RankStats
	// Records is the number of records in the final report (rank 0 only).
	Records int64
	// Duration is the wall time of the rank.
	Duration time.Duration
	// Summary describes the run (rank 0 only).
	Summary *report.Summary
}

type runner struct {
	opts   Options
	c      comm.Communicator
	params *Params
	corpus *corpus.Corpus
	log    *slog.Logger
	stats  RankStats

	sigs  *matrix.Matrix
	bands *matrix.Matrix
}

// Run executes one rank of a job over c. All ranks of the job must call Run
// with communicators of the same group.
func Run(ctx context.Context, c comm.Communicator, opts Options) (*Result, error) {
	opts.normalize()

	start := time.Now()

	r := &runner{
		opts:  opts,
		c:     c,
		log:   opts.Logger,
		stats: RankStats{Rank: c.Rank(), Phases: make(map[string]time.Duration)},
	}

	ctx, span := opts.Tracer.Start(ctx, "neardup.run", trace.WithAttributes(
		attribute.Int("neardup.rank", c.Rank()),
		attribute.Int("neardup.workers", c.Size()),
	))
	defer span.End()

	res, err := r.run(ctx)
	opts.Status.Enter(c.Rank(), observability.PhaseDone)

	if err != nil {
		opts.Status.Fail(fmt.Errorf("rank %d: %w", c.Rank(), err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return nil, err
	}

	res.Duration = time.Since(start)

	if c.Rank() != Root {
		return res, nil
	}

	res.Summary = buildSummary(res, start)

	if r.params.Summary != "" {
		err = report.WriteSummary(opts.Fs, r.params.Summary, res.Summary)
		if err != nil {
			return nil, err
		}
	}

	return res, nil
}

func (r *runner) run(ctx context.Context) (*Result, error) {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{PhaseAnnounce, r.announce},
		{PhaseSignatures, r.signatures},
		{PhaseBands, r.reduceBands},
		{PhaseExchange, r.exchange},
		{PhaseCompare, r.compare},
	}

	for _, step := range steps {
		err := r.phase(ctx, step.name, step.fn)
		if err != nil {
			return nil, err
		}
	}

	res := &Result{Params: r.params}

	err := r.phase(ctx, PhaseMerge, func(ctx context.Context) error {
		return r.merge(ctx, res)
	})
	if err != nil {
		return nil, err
	}

	res.Rank = r.stats

	return res, nil
}

func (r *runner) phase(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := r.opts.Tracer.Start(ctx, "neardup.phase."+name, trace.WithAttributes(
		attribute.String("phase.name", name),
		attribute.Int("neardup.rank", r.c.Rank()),
	))
	defer span.End()

	ctx = observability.WithPhase(ctx, name)
	r.opts.Status.Enter(r.c.Rank(), name)

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	r.stats.Phases[name] = elapsed
	r.opts.Metrics.RecordPhase(ctx, name, elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return fmt.Errorf("%s: %w", name, err)
	}

	r.log.DebugContext(ctx, "phase done", "elapsed", elapsed)

	return nil
}

func (r *runner) announce(ctx context.Context) error {
	var payload []byte

	if r.c.Rank() == Root {
		p, err := r.plan()
		if err != nil {
			return err
		}

		payload, err = encodeParams(p)
		if err != nil {
			return err
		}
	}

	data, err := comm.Broadcast(ctx, r.c, Root, comm.TagAnnounce, payload)
	if err != nil {
		return err
	}

	p, err := decodeParams(data, r.c.Size())
	if err != nil {
		return err
	}

	cp, err := corpus.New(r.opts.Fs, p.Directory, p.Offset)
	if err != nil {
		return err
	}

	r.params = p
	r.corpus = cp
	r.log = r.log.With("run_id", p.RunID)
	r.opts.Status.Announce(p.RunID)
	r.stats.Shard = p.Plan.Shards[r.c.Rank()]
	r.stats.Compare = p.Plan.Comparisons[r.c.Rank()]

	if r.c.Rank() == Root {
		r.log.InfoContext(ctx, "job planned",
			"docs", p.Plan.Docs, "workers", p.Plan.Workers, "strategy", p.Strategy,
			"signature_size", p.SignatureSize, "band_rows", p.BandRows, "threshold", p.Threshold)
	}

	return nil
}

func (r *runner) plan() (*Params, error) {
	cfg := r.opts.Config
	if cfg == nil {
		return nil, fmt.Errorf("%w: rank 0 has no configuration", ErrBadAnnounce)
	}

	err := errors.Join(cfg.Validate(), cfg.RequireDirectory())
	if err != nil {
		return nil, err
	}

	cp, err := corpus.New(r.opts.Fs, cfg.Corpus.Directory, cfg.Corpus.Offset)
	if err != nil {
		return nil, err
	}

	err = cp.Stat()
	if err != nil {
		return nil, err
	}

	docs := cfg.Corpus.Docs
	if docs == 0 {
		docs, err = cp.Discover()
		if err != nil {
			return nil, err
		}
	}

	plan, err := partition.NewPlan(docs, r.c.Size())
	if err != nil {
		return nil, err
	}

	p := paramsFromConfig(cfg)
	p.RunID = uuid.New().String()
	p.Plan = plan

	return p, nil
}

func (r *runner) signatures(ctx context.Context) error {
	shard := r.stats.Shard
	r.sigs = matrix.New(shard.Len(), r.params.SignatureSize)

	rate := stats.NewRate(progressSmoothing)
	last := time.Now()

	for i := shard.Start; i < shard.End; i++ {
		err := ctx.Err()
		if err != nil {
			return err
		}

		shingles, err := r.signature(ctx, i, r.sigs.Row(i-shard.Start))
		if err != nil {
			return err
		}

		r.stats.Shingles += shingles

		done := i - shard.Start + 1
		if r.params.Verbose > 0 && done%r.params.Verbose == 0 {
			now := time.Now()
			rate.Observe(r.params.Verbose, now.Sub(last))
			last = now

			r.log.InfoContext(ctx, "computing signatures",
				"doc", r.corpus.ID(i), "done", done, "of", shard.Len(),
				"docs_per_sec", fmt.Sprintf("%.1f", rate.PerSecond()))
		}
	}

	return nil
}

func (r *runner) signature(ctx context.Context, i int, dst []uint32) (int64, error) {
	ctx, span := r.opts.Tracer.Start(ctx, observability.SpanDocument,
		trace.WithAttributes(attribute.Int("neardup.doc", r.corpus.ID(i))))
	defer span.End()

	rc, err := r.corpus.Open(i)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	sc, err := shingle.NewScanner(rc, r.params.ShingleSize)
	if err != nil {
		return 0, err
	}

	err = minhash.BuildInto(dst, sc, r.params.Seed)
	if err != nil {
		return 0, fmt.Errorf("doc %d: %w", r.corpus.ID(i), err)
	}

	r.opts.Metrics.RecordDocument(ctx, sc.Count())
	r.opts.Status.AddDocuments(1)

	return sc.Count(), nil
}

func (r *runner) reduceBands(_ context.Context) error {
	r.bands = matrix.New(r.sigs.Rows(), r.params.NumBands())

	return lsh.ReduceMatrix(r.sigs, r.bands, r.params.BandRows)
}

func (r *runner) exchange(ctx context.Context) error {
	shards := r.params.Plan.Shards
	strategy := r.params.ExchangeStrategy()

	sigs, sigStats, err := exchange.Sync(ctx, r.c, comm.TagSignatures, r.sigs, shards, strategy)
	if err != nil {
		return err
	}

	bands, bandStats, err := exchange.Sync(ctx, r.c, comm.TagBands, r.bands, shards, strategy)
	if err != nil {
		return err
	}

	sigStats.Add(bandStats)

	r.sigs, r.bands = sigs, bands
	r.stats.BytesSent = sigStats.BytesSent
	r.stats.BytesReceived = sigStats.BytesReceived
	r.opts.Metrics.RecordExchange(ctx, sigStats.BytesSent, sigStats.BytesReceived)

	return nil
}

// reportPath is where this rank writes its records, or "" when it has none
// to write.
func (r *runner) reportPath() string {
	switch {
	case r.params.ExchangeStrategy() == exchange.StrategyGather && r.c.Rank() == Root:
		return r.params.Report
	case r.params.ExchangeStrategy() == exchange.StrategyBroadcast:
		return report.PartPath(r.params.Report, r.c.Rank())
	default:
		return ""
	}
}

func (r *runner) compare(ctx context.Context) error {
	path := r.reportPath()
	if path == "" {
		r.stats.Compare = partition.Range{}

		return nil
	}

	rng := r.stats.Compare
	if r.params.ExchangeStrategy() == exchange.StrategyGather {
		rng = partition.Range{Start: 0, End: r.params.Plan.Docs}
		r.stats.Compare = rng
	}

	cmp, err := compare.New(r.sigs, r.bands, r.params.Threshold, r.params.Offset)
	if err != nil {
		return err
	}

	f, err := r.opts.Fs.Create(path)
	if err != nil {
		return fmt.Errorf("create report %s: %w", path, err)
	}
	defer f.Close()

	w, err := report.NewWriter(f)
	if err != nil {
		return err
	}

	for rec := range cmp.Pairs(rng) {
		err = w.Write(rec)
		if err != nil {
			return err
		}
	}

	err = w.Flush()
	if err != nil {
		return err
	}

	st := cmp.Stats()
	r.stats.Comparisons = st.Comparisons
	r.stats.Candidates = st.Candidates
	r.stats.Matches = st.Matches
	r.opts.Metrics.RecordComparisons(ctx, st.Comparisons, st.Candidates, st.Matches)

	return f.Close()
}

func (r *runner) merge(ctx context.Context, res *Result) error {
	payload, err := json.Marshal(r.stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	// Every rank has closed its part once rank 0 holds all stats.
	all, err := comm.Gather(ctx, r.c, Root, comm.TagStats, payload)
	if err != nil {
		return err
	}

	if r.c.Rank() == Root {
		res.Ranks = make([]RankStats, len(all))

		for i, data := range all {
			err = json.Unmarshal(data, &res.Ranks[i])
			if err != nil {
				return fmt.Errorf("decode stats of rank %d: %w", i, err)
			}
		}

		res.Records, err = r.finishReport(ctx, res.Ranks)
		if err != nil {
			return err
		}
	}

	return comm.Barrier(ctx, r.c, Root)
}

func (r *runner) finishReport(ctx context.Context, ranks []RankStats) (int64, error) {
	if r.params.ExchangeStrategy() == exchange.StrategyGather {
		return ranks[Root].Matches, nil
	}

	parts := report.PartPaths(r.params.Report, r.c.Size())

	records, err := report.MergeFiles(r.opts.Fs, r.params.Report, parts, !r.params.KeepParts)
	if err != nil {
		return records, err
	}

	r.log.InfoContext(ctx, "report written", "path", r.params.Report, "records", records, "parts", len(parts))

	return records, nil
}
