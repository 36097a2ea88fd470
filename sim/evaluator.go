package sim

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
)

// EvaluatorConfig describes one single-agent evaluation: which policies
// to compare on which environments, over how many independent
// replicates.
type EvaluatorConfig struct {
	Envs        []*env.MAB
	Policies    []policy.Policy
	Horizon     int
	Repetitions int

	// MaxConcurrency bounds the number of replicates running at once.
	// 1 means strictly sequential; both schedules are semantically
	// identical up to seed assignment.
	MaxConcurrency int

	// BaseSeed makes the whole evaluation reproducible: replicate i
	// plays with seed BaseSeed+i.
	BaseSeed uint64

	Logger  *slog.Logger
	Metrics MetricsCollector
}

func (c *EvaluatorConfig) validate() error {
	if len(c.Envs) == 0 {
		return ErrNoEnvs
	}
	if len(c.Policies) == 0 {
		return ErrNoPolicies
	}
	if c.Horizon < 1 {
		return ErrInvalidHorizon
	}
	if c.Repetitions < 1 {
		return ErrInvalidRepetitions
	}
	return nil
}

// Evaluator runs many independent single-agent replicates and merges
// their trajectories into population statistics. Accumulators are only
// written by the merge step after all replicates of an environment have
// completed, so they need no locking.
type Evaluator struct {
	cfg     EvaluatorConfig
	id      string
	logger  *slog.Logger
	metrics MetricsCollector

	// rewards[pol][env][t] is the sum over replicates of the cumulative
	// reward at step t; pulls[env][pol][arm] the summed pull counts.
	rewards [][][]float64
	pulls   [][][]int
}

// NewEvaluator validates the configuration and allocates the
// accumulators.
func NewEvaluator(cfg EvaluatorConfig) (*Evaluator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetricsCollector{}
	}

	e := &Evaluator{
		cfg:     cfg,
		id:      uuid.NewString(),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		rewards: make([][][]float64, len(cfg.Policies)),
		pulls:   make([][][]int, len(cfg.Envs)),
	}
	for pol := range e.rewards {
		e.rewards[pol] = make([][]float64, len(cfg.Envs))
		for envID := range e.rewards[pol] {
			e.rewards[pol][envID] = make([]float64, cfg.Horizon)
		}
	}
	for envID := range e.pulls {
		e.pulls[envID] = make([][]int, len(cfg.Policies))
		for pol := range e.pulls[envID] {
			e.pulls[envID][pol] = make([]int, cfg.Envs[envID].NbArms())
		}
	}
	return e, nil
}

// ID returns the unique identifier of this evaluation run.
func (e *Evaluator) ID() string {
	return e.id
}

// Start evaluates every policy on every environment.
func (e *Evaluator) Start(ctx context.Context) error {
	start := time.Now()
	defer func() {
		e.metrics.SetRunDuration(time.Since(start))
	}()

	for envID, mab := range e.cfg.Envs {
		e.logger.Info("evaluating environment",
			slog.String("run_id", e.id),
			slog.Int("env", envID),
			slog.String("arms", mab.String()),
		)
		for polID, pol := range e.cfg.Policies {
			if err := e.startOne(ctx, envID, polID, mab, pol); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Evaluator) startOne(ctx context.Context, envID, polID int, mab *env.MAB, pol policy.Policy) error {
	e.logger.Info("evaluating policy",
		slog.String("run_id", e.id),
		slog.Int("env", envID),
		slog.String("policy", pol.String()),
		slog.Int("repetitions", e.cfg.Repetitions),
	)

	// Collect per repetition, merge after the join: the accumulators
	// stay single-writer and the merge order never matters (addition is
	// commutative).
	results := make([]*Result, e.cfg.Repetitions)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrency)
	for rep := range e.cfg.Repetitions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			results[rep] = Play(mab, pol, e.cfg.Horizon, e.cfg.BaseSeed+uint64(rep))
			e.metrics.IncReplicateCount()
			e.metrics.ObserveReplicateDuration(time.Since(start))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range results {
		e.merge(envID, polID, r)
	}
	return nil
}

// merge folds one replicate's trajectory into the accumulators: rewards
// are prefix-summed then added, pulls added.
func (e *Evaluator) merge(envID, polID int, r *Result) {
	cum := 0.0
	rewards := e.rewards[polID][envID]
	for t, reward := range r.Rewards {
		cum += reward
		rewards[t] += cum
	}
	pulls := e.pulls[envID][polID]
	for arm, n := range r.Pulls {
		pulls[arm] += n
	}
}

// MeanReward returns the cumulative reward at every step, averaged over
// replicates.
func (e *Evaluator) MeanReward(polID, envID int) []float64 {
	out := make([]float64, e.cfg.Horizon)
	for t, sum := range e.rewards[polID][envID] {
		out[t] = sum / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanRegret returns the cumulative regret at every step, averaged over
// replicates: t times the best mean, minus the mean cumulative reward.
func (e *Evaluator) MeanRegret(polID, envID int) []float64 {
	maxArm := e.cfg.Envs[envID].MaxArm()
	out := e.MeanReward(polID, envID)
	for t := range out {
		out[t] = float64(t+1)*maxArm - out[t]
	}
	return out
}

// MeanPulls returns the per-arm pull counts averaged over replicates.
func (e *Evaluator) MeanPulls(polID, envID int) []float64 {
	pulls := e.pulls[envID][polID]
	out := make([]float64, len(pulls))
	for arm, n := range pulls {
		out[arm] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}
