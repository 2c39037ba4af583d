package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/rf-link-engine/internal/logging"
	"github.com/signalsfoundry/rf-link-engine/model"
)

const tracerName = "github.com/signalsfoundry/rf-link-engine/core"

// Stages that run outside the task graph.
const (
	StageRegistry = "registry"
	StageReduce   = "reduce"
	StageCommit   = "commit"
)

// Pass outcomes reported to the PassRecorder.
const (
	PassCommitted = "committed"
	PassStale     = "stale"
	PassFailed    = "failed"
)

// ErrStalePass is returned when a newer pass started before this one could
// commit. Its results are discarded.
var ErrStalePass = errors.New("pass superseded by a newer pass")

// PassRecorder receives pass and stage timings. It is satisfied by
// observability.EngineCollector.
type PassRecorder interface {
	ObservePass(outcome string, d time.Duration)
	ObserveStage(stage string, d time.Duration)
	SetPassCounts(validPairs, candidates, accepted int)
}

type noopRecorder struct{}

func (noopRecorder) ObservePass(string, time.Duration)  {}
func (noopRecorder) ObserveStage(string, time.Duration) {}
func (noopRecorder) SetPassCounts(int, int, int)        {}

// Config tunes the worker pool used by data-parallel stages.
type Config struct {
	// Workers bounds concurrent chunks per stage. Zero means GOMAXPROCS.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// ChunkSize is the number of candidates per work item.
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   runtime.GOMAXPROCS(0),
		ChunkSize: defaultChunk,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder sets the metrics sink.
func WithRecorder(r PassRecorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithConfig overrides the worker configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.cfg = cfg
	}
}

// WithTracerProvider uses tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// Engine runs recomputation passes and commits their results to a
// RoutingGraph. Recompute may be called concurrently; a newer call
// supersedes any pass still in flight.
type Engine struct {
	graph    RoutingGraph
	cfg      Config
	log      logging.Logger
	recorder PassRecorder
	tracer   trace.Tracer

	// commitMu guards generation and every graph mutation, so a pass that
	// observes its generation as current commits before any newer pass
	// can begin.
	commitMu   sync.Mutex
	generation uint64

	inflightMu sync.Mutex
	inflight   context.CancelFunc
	inflightID uint64
}

// PassResult is what one pass produced.
type PassResult struct {
	PassID     string
	Generation uint64
	Registry   *Registry
	Candidates *Candidates
	Decisions  []PairDecision
	ValidPairs int
	Accepted   int
	Commit     CommitStats
	Duration   time.Duration
}

// NewEngine creates an engine committing to graph.
func NewEngine(graph RoutingGraph, opts ...Option) *Engine {
	e := &Engine{
		graph:    graph,
		cfg:      DefaultConfig(),
		log:      logging.Noop(),
		recorder: noopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generation returns the number of passes started so far.
func (e *Engine) Generation() uint64 {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	return e.generation
}

// Recompute runs a full pass over snap and commits the accepted links.
// It returns ErrStalePass if another Recompute started before this one
// reached its commit point; in that case the graph is left untouched.
func (e *Engine) Recompute(ctx context.Context, snap *model.Snapshot) (*PassResult, error) {
	start := time.Now()

	e.commitMu.Lock()
	e.generation++
	gen := e.generation
	e.commitMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	e.supersede(gen, cancel)
	defer e.release(gen, cancel)

	ctx, log := logging.WithPassLogger(ctx, e.log)
	log = log.With(logging.Uint64("generation", gen))
	passID := logging.PassIDFromContext(ctx)

	ctx, span := e.tracer.Start(ctx, "linkengine.pass", trace.WithAttributes(
		attribute.String("pass_id", passID),
		attribute.Int64("generation", int64(gen)),
	))
	defer span.End()

	res, err := e.evaluate(ctx, snap, log)
	if err != nil {
		if e.superseded(gen) {
			return e.stale(ctx, log, span, start)
		}
		if errors.Is(err, context.Canceled) {
			e.recorder.ObservePass(PassFailed, time.Since(start))
			log.Info(ctx, "link pass cancelled")
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.ObservePass(PassFailed, time.Since(start))
		log.Error(ctx, "link pass failed", logging.Err(err))
		return nil, err
	}
	res.PassID = passID
	res.Generation = gen

	e.commitMu.Lock()
	if gen != e.generation {
		e.commitMu.Unlock()
		return e.stale(ctx, log, span, start)
	}
	commitStart := time.Now()
	stats, err := Commit(e.graph, res.Decisions, passID)
	e.commitMu.Unlock()
	e.recorder.ObserveStage(StageCommit, time.Since(commitStart))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.recorder.ObservePass(PassFailed, time.Since(start))
		log.Error(ctx, "link commit failed", logging.Err(err))
		return nil, fmt.Errorf("commit: %w", err)
	}

	res.Commit = stats
	res.Duration = time.Since(start)
	e.recorder.SetPassCounts(res.ValidPairs, res.Candidates.Len(), res.Accepted)
	e.recorder.ObservePass(PassCommitted, res.Duration)
	span.SetAttributes(
		attribute.Int("candidates", res.Candidates.Len()),
		attribute.Int("accepted", res.Accepted),
	)
	log.Info(ctx, "link pass committed",
		logging.Int("nodes", len(res.Registry.Nodes)),
		logging.Int("valid_pairs", res.ValidPairs),
		logging.Int("candidates", res.Candidates.Len()),
		logging.Int("accepted", res.Accepted),
		logging.Int("removed", stats.Removed),
		logging.Any("duration", res.Duration),
	)
	return res, nil
}

// Evaluate runs the pipeline and reducer without committing.
func (e *Engine) Evaluate(ctx context.Context, snap *model.Snapshot) (*PassResult, error) {
	ctx, log := logging.WithPassLogger(ctx, e.log)
	res, err := e.evaluate(ctx, snap, log)
	if err != nil {
		return nil, err
	}
	res.PassID = logging.PassIDFromContext(ctx)
	return res, nil
}

func (e *Engine) evaluate(ctx context.Context, snap *model.Snapshot, log logging.Logger) (*PassResult, error) {
	start := time.Now()
	reg, err := BuildRegistry(snap)
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	e.recorder.ObserveStage(StageRegistry, time.Since(start))

	p := &pass{
		reg:     reg,
		workers: e.cfg.Workers,
		chunk:   e.cfg.ChunkSize,
	}
	g, err := newPipeline(p)
	if err != nil {
		return nil, err
	}
	g.Use(e.stageMiddleware(log))
	if err := g.Run(ctx); err != nil {
		return nil, err
	}

	reduceStart := time.Now()
	decisions := ReduceBestLinks(reg, p.cand)
	e.recorder.ObserveStage(StageReduce, time.Since(reduceStart))

	res := &PassResult{
		Registry:   reg,
		Candidates: p.cand,
		Decisions:  decisions,
	}
	for _, ok := range p.valid {
		if ok {
			res.ValidPairs++
		}
	}
	for _, d := range decisions {
		if d.Accepted {
			res.Accepted++
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// stageMiddleware times each task and wraps it in a child span.
func (e *Engine) stageMiddleware(log logging.Logger) TaskMiddleware {
	return func(ctx context.Context, name string, next func(context.Context) error) error {
		ctx, span := e.tracer.Start(ctx, "linkengine.stage."+name,
			trace.WithAttributes(attribute.String("stage", name)))
		defer span.End()

		start := time.Now()
		err := next(ctx)
		d := time.Since(start)
		e.recorder.ObserveStage(name, d)
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		log.Debug(ctx, "stage done", logging.String("stage", name), logging.Any("duration", d))
		return err
	}
}

func (e *Engine) stale(ctx context.Context, log logging.Logger, span trace.Span, start time.Time) (*PassResult, error) {
	span.SetAttributes(attribute.Bool("stale", true))
	e.recorder.ObservePass(PassStale, time.Since(start))
	log.Debug(ctx, "link pass discarded; superseded by newer pass")
	return nil, ErrStalePass
}

func (e *Engine) superseded(gen uint64) bool {
	e.commitMu.Lock()
	defer e.commitMu.Unlock()
	return gen != e.generation
}

// supersede cancels the in-flight pass, if any, and registers cancel as the
// current one.
func (e *Engine) supersede(gen uint64, cancel context.CancelFunc) {
	e.inflightMu.Lock()
	defer e.inflightMu.Unlock()
	if gen < e.inflightID {
		cancel()
		return
	}
	if e.inflight != nil {
		e.inflight()
	}
	e.inflight = cancel
	e.inflightID = gen
}

func (e *Engine) release(gen uint64, cancel context.CancelFunc) {
	e.inflightMu.Lock()
	if e.inflightID == gen {
		e.inflight = nil
	}
	e.inflightMu.Unlock()
	cancel()
}
