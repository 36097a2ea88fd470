package sim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/sim"
)

func TestNewEvaluatorMultiPlayersValidation(t *testing.T) {
	mab := newBernoulliMAB(t, 0.1, 0.5, 0.9)
	players := newKnownPlayers(t, 3, 2)

	base := sim.EvaluatorMultiPlayersConfig{
		Envs:        []*env.MAB{mab},
		Players:     players,
		Horizon:     100,
		Repetitions: 10,
	}

	is := assert.New(t)

	cfg := base
	cfg.Envs = nil
	_, err := sim.NewEvaluatorMultiPlayers(cfg)
	is.ErrorIs(err, sim.ErrNoEnvs)

	cfg = base
	cfg.Players = nil
	_, err = sim.NewEvaluatorMultiPlayers(cfg)
	is.ErrorIs(err, sim.ErrNoPlayers)

	cfg = base
	cfg.Horizon = 0
	_, err = sim.NewEvaluatorMultiPlayers(cfg)
	is.ErrorIs(err, sim.ErrInvalidHorizon)

	cfg = base
	cfg.DeltaTSave = -1
	_, err = sim.NewEvaluatorMultiPlayers(cfg)
	is.ErrorIs(err, sim.ErrInvalidDeltaTSave)

	ev, err := sim.NewEvaluatorMultiPlayers(base)
	is.NoError(err)
	is.NotEmpty(ev.ID())
	is.Equal(2, ev.NbPlayers())
	is.Equal(100, ev.Duration())
}

func TestEvaluatorMultiPlayersMusicalChair(t *testing.T) {
	const (
		horizon     = 500
		repetitions = 50
	)
	mab := newBernoulliMAB(t, 0.1, 0.5, 0.9)
	players := newKnownPlayers(t, 3, 2)

	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:           []*env.MAB{mab},
		Players:        players,
		Horizon:        horizon,
		Repetitions:    repetitions,
		MaxConcurrency: 4,
		BaseSeed:       42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	is := assert.New(t)

	// Musical chairs settles well before 500 steps: the last saved step
	// is collision-free in every replicate.
	last := ev.Duration() - 1
	for arm := range 3 {
		is.Zero(ev.MeanCollisions(arm, 0)[last], "arm %d still collides", arm)
	}

	// Once seated, a player never switches again.
	for p := range ev.NbPlayers() {
		is.Zero(ev.MeanNbSwitches(p, 0)[last], "player %d still switches", p)
	}

	// Both players transmit freely at the end.
	for p := range ev.NbPlayers() {
		is.Equal(1.0, ev.MeanFreeTransmissions(p, 0)[last], "player %d", p)
	}

	// Players sit on uniformly random distinct arms, so the group loses
	// 0.4 per step on average against the best pair of arms. The regret
	// must be clearly positive yet far below the worst case.
	regret := ev.CentralizedRegret(0)
	is.Greater(regret[last], 50.0)
	is.Less(regret[last], float64(horizon)*1.4)

	fairness := ev.FairnessIndex(0)
	for s, f := range fairness {
		is.GreaterOrEqual(f, 0.0, "step %d", s)
		is.LessOrEqual(f, 1.0, "step %d", s)
	}

	lower, anandkumar := ev.LowerBound(0)
	is.Greater(lower, 0.0)
	is.Greater(anandkumar, 0.0)
}

func TestEvaluatorMultiPlayersBestArmPulls(t *testing.T) {
	const horizon = 300
	mab := newBernoulliMAB(t, 0.1, 0.9)
	// A single player with the population known sits immediately; with
	// all arms as candidates it picks one uniformly.
	players := newKnownPlayers(t, 2, 1)

	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:        []*env.MAB{mab},
		Players:     players,
		Horizon:     horizon,
		Repetitions: 100,
		BaseSeed:    42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	// The seat is one of two arms, so the best arm hosts roughly half
	// of the replicates at the end.
	final := ev.MeanBestArmPulls(0, 0)[ev.Duration()-1]
	assert.InDelta(t, 0.5, final, 0.2)
}

func TestEvaluatorMultiPlayersMeanPulls(t *testing.T) {
	const horizon = 200
	mab := newBernoulliMAB(t, 0.1, 0.9)
	// A lone player never collides: every step is a pull.
	players := newKnownPlayers(t, 2, 1)

	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:        []*env.MAB{mab},
		Players:     players,
		Horizon:     horizon,
		Repetitions: 20,
		BaseSeed:    42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	pulls := ev.MeanPulls(0, 0)

	is := assert.New(t)
	is.Len(pulls, 2)
	is.InDelta(float64(horizon), pulls[0]+pulls[1], 1e-9)
}

func TestCentralizedRegretMorePlayersThanArms(t *testing.T) {
	const horizon = 50
	// Both arms pay 1 deterministically, so the accumulators are exact.
	mab := newBernoulliMAB(t, 1, 1)
	players := newKnownPlayers(t, 2, 3)

	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:        []*env.MAB{mab},
		Players:     players,
		Horizon:     horizon,
		Repetitions: 5,
		// Every player is paid every step, so the group earns 3 per
		// step while the best achievable rate is capped by the arms.
		CollisionModel: sim.NoCollision,
		BaseSeed:       42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	// With 3 players on 2 arms the surplus player burns the worst arm
	// in collisions: the best achievable group rate is 1+1-1 = 1 per
	// step, so the regret is (1-3)t.
	regret := ev.CentralizedRegret(0)

	is := assert.New(t)
	is.Equal(-2.0, regret[0])
	is.Equal(-2.0*horizon, regret[horizon-1])
}

func TestEvaluatorMultiPlayersDownsampling(t *testing.T) {
	mab := newBernoulliMAB(t, 0.1, 0.9)
	players := newKnownPlayers(t, 2, 2)

	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:        []*env.MAB{mab},
		Players:     players,
		Horizon:     100,
		Repetitions: 5,
		DeltaTSave:  10,
		BaseSeed:    42,
	})
	require.NoError(t, err)
	require.NoError(t, ev.Start(context.Background()))

	is := assert.New(t)
	is.Equal(10, ev.Duration())
	is.Len(ev.MeanRewards(0, 0), 10)
	is.Len(ev.CentralizedRegret(0), 10)
}
