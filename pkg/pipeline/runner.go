package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/fibertree/pkg/cache"
	errs "github.com/matzehuels/fibertree/pkg/errors"
	"github.com/matzehuels/fibertree/pkg/fibertree"
	ftio "github.com/matzehuels/fibertree/pkg/io"
	"github.com/matzehuels/fibertree/pkg/metrics"
	"github.com/matzehuels/fibertree/pkg/observability"
)

// collectMu serializes kernel runs. The metrics collector is process-wide,
// so two runs collecting at once would mix their counters.
var collectMu sync.Mutex

// Runner executes kernels with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner; their kernels run one at a
// time.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL is the lifetime of cached runs (default cache.TTLRun).
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, caching is disabled.
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewDisabled()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// cachedRun is the cache encoding of a Result.
type cachedRun struct {
	RunID    string       `json:"run_id"`
	Output   string       `json:"output"`
	Metrics  metrics.Dump `json:"metrics"`
	Values   int          `json:"values"`
	Duration int64        `json:"duration_ns"`
}

// Execute runs opts.Op over opts.Inputs and collects its metrics.
//
// Runs without traces are served from the cache when possible. A traced
// run always executes, since its trace files are part of the result.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = r.Logger
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var key string
	caching := !cache.IsDisabled(r.Cache)
	if caching {
		k, err := r.runKey(opts)
		if err != nil {
			return nil, err
		}
		key = k
	}
	if caching && !opts.Refresh && len(opts.Trace) == 0 {
		if res, ok := r.lookup(ctx, key, logger); ok {
			logger.Info("cache hit", "op", opts.Op, "run", res.RunID)
			return res, nil
		}
	}

	res := &Result{RunID: uuid.NewString()}
	res.TraceDir = opts.traceDir(res.RunID)

	hooks := observability.Pipeline()
	hooks.OnRunStart(ctx, opts.Op, len(opts.Inputs))
	start := time.Now()
	var err error
	res.Output, res.Metrics, err = collect(opts, res.TraceDir)
	res.Stats.Duration = time.Since(start)
	if res.Output != nil {
		res.Stats.Values = res.Output.CountValues()
	}
	hooks.OnRunComplete(ctx, opts.Op, res.Stats.Values, res.Stats.Duration, err)
	if err != nil {
		return nil, err
	}

	logger.Info("ran kernel",
		"op", opts.Op,
		"run", res.RunID,
		"values", res.Stats.Values,
		"duration", res.Stats.Duration)
	if res.TraceDir != "" {
		logger.Debug("wrote traces", "dir", res.TraceDir, "ranks", opts.Trace)
	}

	if caching {
		r.store(ctx, key, res, logger)
	}
	return res, nil
}

// collect runs the kernel inside a metrics frame with its loop nest
// registered and the requested traces enabled.
func collect(opts Options, traceDir string) (z *fibertree.Tensor, dump metrics.Dump, err error) {
	collectMu.Lock()
	defer collectMu.Unlock()

	if err := metrics.BeginCollect(traceDir); err != nil {
		return nil, nil, errs.Wrap(errs.ErrCodeInternal, err, "start metrics")
	}
	defer func() {
		d, endErr := metrics.EndCollect()
		dump = d
		if err == nil && endErr != nil {
			err = errs.Wrap(errs.ErrCodeInternal, endErr, "write traces")
		}
	}()

	for _, rank := range loopNest(opts.Op, opts.Inputs[0], opts.Inputs[1]) {
		metrics.RegisterRank(rank)
	}
	for _, rank := range opts.Trace {
		for _, typ := range traceTypes[opts.Op] {
			if err := metrics.Trace(rank, typ, false); err != nil {
				return nil, nil, errs.Wrap(errs.ErrCodeInternal, err, "enable trace")
			}
		}
	}
	z, err = Compute(opts.Op, opts.Inputs[0], opts.Inputs[1], opts.Name)
	return z, nil, err
}

// loopNest returns the ranks of op's loops, outermost first. Trace lines
// carry the loop position of every rank down to their own.
func loopNest(op string, a, b *fibertree.Tensor) []string {
	ids := a.RankIDs()
	if op == OpMatmul {
		return []string{ids[0], ids[1], b.RankIDs()[1]}
	}
	return ids
}

func (r *Runner) runKey(opts Options) (string, error) {
	hashes := make([]string, len(opts.Inputs))
	for i, t := range opts.Inputs {
		h, err := TensorHash(t)
		if err != nil {
			return "", err
		}
		hashes[i] = h
	}
	return r.Keyer.RunKey(opts.Op+":"+opts.Name, hashes, cache.RunKeyOpts{Trace: opts.Trace}), nil
}

// TensorHash returns the content hash of a tensor: the SHA-256 of its YAML
// encoding.
func TensorHash(t *fibertree.Tensor) (string, error) {
	var buf bytes.Buffer
	if err := ftio.WriteYAML(t, &buf); err != nil {
		return "", errs.Wrap(errs.ErrCodeInternal, err, "encode tensor")
	}
	return cache.Hash(buf.Bytes()), nil
}

func (r *Runner) lookup(ctx context.Context, key string, logger *log.Logger) (*Result, bool) {
	hooks := observability.Cache()
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", "error", err)
	}
	if err != nil || !hit {
		hooks.OnCacheMiss(ctx, "run")
		return nil, false
	}

	var entry cachedRun
	if err := json.Unmarshal(data, &entry); err != nil {
		hooks.OnCacheMiss(ctx, "run")
		return nil, false
	}
	z, err := ftio.ReadYAML(strings.NewReader(entry.Output))
	if err != nil {
		hooks.OnCacheMiss(ctx, "run")
		return nil, false
	}
	hooks.OnCacheHit(ctx, "run")
	return &Result{
		RunID:    entry.RunID,
		Output:   z,
		Metrics:  entry.Metrics,
		Stats:    Stats{Duration: time.Duration(entry.Duration), Values: entry.Values},
		CacheHit: true,
	}, true
}

func (r *Runner) store(ctx context.Context, key string, res *Result, logger *log.Logger) {
	var buf bytes.Buffer
	if err := ftio.WriteYAML(res.Output, &buf); err != nil {
		logger.Warn("cache encode failed", "error", err)
		return
	}
	data, err := json.Marshal(cachedRun{
		RunID:    res.RunID,
		Output:   buf.String(),
		Metrics:  res.Metrics,
		Values:   res.Stats.Values,
		Duration: int64(res.Stats.Duration),
	})
	if err != nil {
		logger.Warn("cache encode failed", "error", err)
		return
	}
	ttl := r.TTL
	if ttl <= 0 {
		ttl = cache.TTLRun
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("cache write failed", "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "run", len(data))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
