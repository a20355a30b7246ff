package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/apartresearch/reward-analyzer/internal/prom"
	"github.com/apartresearch/reward-analyzer/internal/tracking"
	"github.com/apartresearch/reward-analyzer/pkg/artifacts"
	"github.com/apartresearch/reward-analyzer/pkg/logger"
	"github.com/apartresearch/reward-analyzer/pkg/sweep"
)

// Trainer trains the autoencoders of one experiment.
type Trainer interface {
	Train(ctx context.Context, exp *sweep.Experiment) (artifacts.Bundle, error)
}

// TrainerFunc adapts a function to a Trainer.
type TrainerFunc func(ctx context.Context, exp *sweep.Experiment) (artifacts.Bundle, error)

// Train implements Trainer.
func (f TrainerFunc) Train(ctx context.Context, exp *sweep.Experiment) (artifacts.Bundle, error) {
	return f(ctx, exp)
}

// RunnerConfig tunes a Runner.
type RunnerConfig struct {
	// MaxConcurrent bounds the experiments trained at once; values below 1 mean 1.
	MaxConcurrent int `json:"max_concurrent"`
	// SaveRetries is how many times a failed save is retried.
	SaveRetries int `json:"save_retries"`
	// Alias is added to every published artifact.
	Alias string `json:"alias"`
	// SaveRoot holds the local save directories, one subdirectory per policy.
	SaveRoot string `json:"save_root"`
}

// Result is the outcome of one experiment.
type Result struct {
	Key        sweep.Key
	Experiment *sweep.Experiment
	RunName    string
	Artifact   *artifacts.Artifact
	Duration   time.Duration
	Err        error
}

// Runner trains every experiment of a grid and publishes the results.
type Runner struct {
	cfg     RunnerConfig
	trainer Trainer
	naming  artifacts.Naming
	clock   clockwork.Clock
	tracker *tracking.Service
	metrics *Metrics
	backoff func() backoff.BackOff
}

// NewRunner wires a runner. A nil metrics gets unregistered collectors.
func NewRunner(
	cfg RunnerConfig,
	trainer Trainer,
	tracker *tracking.Service,
	naming artifacts.Naming,
	metrics *Metrics,
) *Runner {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Runner{
		cfg:     cfg,
		trainer: trainer,
		naming:  naming,
		clock:   clockwork.NewRealClock(),
		tracker: tracker,
		metrics: metrics,
		backoff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run trains the grid's experiments with bounded concurrency and returns one result per
// experiment, in grid order. The error aggregates every failed experiment. Once ctx is done no
// further experiments start; the ones not started fail with the context's error.
func (r *Runner) Run(ctx context.Context, grid *sweep.Grid) ([]Result, error) {
	keys := grid.Keys()
	results := make([]Result, len(keys))

	var g errgroup.Group
	g.SetLimit(r.cfg.MaxConcurrent)
	for i, k := range keys {
		exp, _ := grid.Get(k)
		results[i] = Result{Key: k, Experiment: exp}
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		res := &results[i]
		g.Go(func() error {
			r.runOne(ctx, res)
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	for _, res := range results {
		outcome := "success"
		if res.Err != nil {
			outcome = "failure"
			merr = multierror.Append(merr, errors.Wrapf(res.Err, "experiment %s", res.Key))
		}
		r.metrics.experiments.WithLabelValues(res.Key.Variant, outcome).Inc()
	}
	return results, merr.ErrorOrNil()
}

func (r *Runner) runOne(ctx context.Context, res *Result) {
	exp := res.Experiment
	lctx := logger.Context{
		"model":   exp.BaseModelName(),
		"variant": res.Key.Variant,
		"policy":  exp.PolicyModelName(),
	}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return
	}

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
	}()

	hp := exp.Hyperparameters()
	run := r.tracker.StartRun(exp.ProjectName(), hp)
	res.RunName = run.Name
	lctx = logger.MergeContexts(lctx, logger.Context{"run": run.Name})
	lctx.Entry().Info("training experiment")

	bundle, err := r.train(ctx, exp)
	if err != nil {
		res.Err = errors.Wrap(err, "training")
		lctx.Entry().WithError(err).Error("training failed")
		return
	}

	metadata := map[string]interface{}{
		"base_model_name":   exp.BaseModelName(),
		"policy_model_name": exp.PolicyModelName(),
		"variant":           exp.Variant().Name(),
	}
	saver := artifacts.NewSaver(
		filepath.Join(r.cfg.SaveRoot, artifacts.SimplifiedPolicyName(exp.PolicyModelName())),
		r.naming, r.clock)
	save := func() error {
		a, err := saver.Save(ctx, bundle, exp.PolicyModelName(), hp, r.cfg.Alias, run, metadata)
		if err != nil {
			return err
		}
		res.Artifact = a
		return nil
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(r.backoff(), uint64(r.cfg.SaveRetries)), ctx)
	err = backoff.RetryNotify(save, policy, func(err error, wait time.Duration) {
		r.metrics.saveRetries.Inc()
		lctx.Entry().WithError(err).Warnf("saving artifact failed, retrying in %s", wait)
	})
	if err != nil {
		r.metrics.failures.WithLabelValues("save").Inc()
		res.Err = errors.Wrap(err, "saving")
		return
	}
	lctx.Entry().WithField("artifact", res.Artifact.Name).Info("experiment done")
}

func (r *Runner) train(ctx context.Context, exp *sweep.Experiment) (b artifacts.Bundle, err error) {
	defer prom.ErrCount(r.metrics.failures.WithLabelValues("train"), &err)
	defer prom.Time(r.metrics.trainDuration.WithLabelValues(exp.Variant().Name()))()
	return r.trainer.Train(ctx, exp)
}
