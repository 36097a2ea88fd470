package sim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
	"github.com/alextanhongpin/bandit/sim"
)

func TestNewEvaluatorValidation(t *testing.T) {
	mab := newBernoulliMAB(t, 0.3, 0.7)
	pol, err := policy.NewBESA(2, 100, newRNG(1), nil)
	require.NoError(t, err)

	base := sim.EvaluatorConfig{
		Envs:        []*env.MAB{mab},
		Policies:    []policy.Policy{pol},
		Horizon:     100,
		Repetitions: 10,
	}

	is := assert.New(t)

	cfg := base
	cfg.Envs = nil
	_, err = sim.NewEvaluator(cfg)
	is.ErrorIs(err, sim.ErrNoEnvs)

	cfg = base
	cfg.Policies = nil
	_, err = sim.NewEvaluator(cfg)
	is.ErrorIs(err, sim.ErrNoPolicies)

	cfg = base
	cfg.Horizon = 0
	_, err = sim.NewEvaluator(cfg)
	is.ErrorIs(err, sim.ErrInvalidHorizon)

	cfg = base
	cfg.Repetitions = 0
	_, err = sim.NewEvaluator(cfg)
	is.ErrorIs(err, sim.ErrInvalidRepetitions)

	ev, err := sim.NewEvaluator(base)
	is.NoError(err)
	is.NotEmpty(ev.ID())
}

func TestEvaluatorBESA(t *testing.T) {
	const (
		horizon     = 1000
		repetitions = 100
	)
	mab := newBernoulliMAB(t, 0.3, 0.7)
	pol, err := policy.NewBESA(2, horizon, newRNG(1), nil)
	require.NoError(t, err)

	ev, err := sim.NewEvaluator(sim.EvaluatorConfig{
		Envs:           []*env.MAB{mab},
		Policies:       []policy.Policy{pol},
		Horizon:        horizon,
		Repetitions:    repetitions,
		MaxConcurrency: 4,
		BaseSeed:       42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	is := assert.New(t)

	rewards := ev.MeanReward(0, 0)
	is.Len(rewards, horizon)
	for i := 1; i < horizon; i++ {
		is.GreaterOrEqual(rewards[i], rewards[i-1], "cumulative reward decreased at %d", i)
	}

	// Ignoring the history and picking at random loses 0.2 per step,
	// 200 over the horizon. A sub-sampling policy must do far better.
	regret := ev.MeanRegret(0, 0)
	is.Less(regret[horizon-1], 100.0)
	is.Greater(regret[horizon-1], 0.0)

	pulls := ev.MeanPulls(0, 0)
	is.InDelta(float64(horizon), pulls[0]+pulls[1], 1e-9)
	// The better arm dominates the pulls.
	is.Greater(pulls[1], pulls[0])
}

func TestEvaluatorConcurrencyEquivalence(t *testing.T) {
	const (
		horizon     = 200
		repetitions = 20
	)
	mab := newBernoulliMAB(t, 0.3, 0.7)
	pol, err := policy.NewBESA(2, horizon, newRNG(1), nil)
	require.NoError(t, err)

	run := func(maxConcurrency int) *sim.Evaluator {
		ev, err := sim.NewEvaluator(sim.EvaluatorConfig{
			Envs:           []*env.MAB{mab},
			Policies:       []policy.Policy{pol},
			Horizon:        horizon,
			Repetitions:    repetitions,
			MaxConcurrency: maxConcurrency,
			BaseSeed:       42,
		})
		require.NoError(t, err)
		require.NoError(t, ev.Start(context.Background()))
		return ev
	}

	sequential := run(1)
	parallel := run(8)

	// Replicates are seeded individually and merged after the join, so
	// the schedule cannot change the statistics. Bernoulli rewards keep
	// the sums exact.
	is := assert.New(t)
	is.Equal(sequential.MeanReward(0, 0), parallel.MeanReward(0, 0))
	is.Equal(sequential.MeanPulls(0, 0), parallel.MeanPulls(0, 0))
}

func TestEvaluatorCanceledContext(t *testing.T) {
	mab := newBernoulliMAB(t, 0.3, 0.7)
	pol, err := policy.NewBESA(2, 100, newRNG(1), nil)
	require.NoError(t, err)

	ev, err := sim.NewEvaluator(sim.EvaluatorConfig{
		Envs:        []*env.MAB{mab},
		Policies:    []policy.Policy{pol},
		Horizon:     100,
		Repetitions: 10,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ev.Start(ctx), context.Canceled)
}
