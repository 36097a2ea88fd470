package sim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alextanhongpin/bandit/policy"
	"github.com/alextanhongpin/bandit/sim"
)

func TestPlay(t *testing.T) {
	const horizon = 200
	mab := newBernoulliMAB(t, 0.2, 0.8)
	pol, err := policy.NewBESA(2, horizon, newRNG(1), nil)
	require.NoError(t, err)

	r := sim.Play(mab, pol, horizon, 42)

	is := assert.New(t)
	is.Len(r.Choices, horizon)
	is.Len(r.Rewards, horizon)

	// Every step pulls exactly one arm.
	is.Equal(horizon, r.Pulls[0]+r.Pulls[1])
	for _, c := range r.Choices {
		is.True(c == 0 || c == 1)
	}
	for _, reward := range r.Rewards {
		is.True(reward == 0 || reward == 1)
	}
}

func TestPlayDeterminism(t *testing.T) {
	const horizon = 100
	mab := newBernoulliMAB(t, 0.2, 0.8)
	pol, err := policy.NewBESA(2, horizon, newRNG(1), nil)
	require.NoError(t, err)

	a := sim.Play(mab, pol, horizon, 7)
	b := sim.Play(mab, pol, horizon, 7)

	is := assert.New(t)
	is.Equal(a.Choices, b.Choices)
	is.Equal(a.Rewards, b.Rewards)
	is.Equal(a.Pulls, b.Pulls)
}

func TestPlayLeavesPrototypeUntouched(t *testing.T) {
	const horizon = 50
	mab := newBernoulliMAB(t, 0.2, 0.8)
	pol, err := policy.NewBESA(2, horizon, newRNG(1), nil)
	require.NoError(t, err)

	sim.Play(mab, pol, horizon, 7)

	// The replicate played on a clone: the prototype still explores
	// from scratch.
	pol.StartGame()
	seen := map[int]bool{}
	for range 2 {
		arm := pol.Choice()
		seen[arm] = true
		pol.GetReward(arm, 0.5)
	}
	assert.Len(t, seen, 2)
}

func TestDelayedPlay(t *testing.T) {
	const (
		horizon    = 300
		deltaTSave = 1
	)
	mab := newBernoulliMAB(t, 0.1, 0.5, 0.9)
	players := newKnownPlayers(t, 3, 2)

	r := sim.DelayedPlay(mab, players, horizon, sim.OnlyUniqUserGetsReward, deltaTSave, 42)

	is := assert.New(t)
	is.Equal(horizon, r.Duration())

	// Musical chairs converges: by the last step both players are
	// seated on distinct arms and nobody collides.
	last := r.Duration() - 1
	for arm := range 3 {
		is.Zero(r.Collisions[arm][last], "arm %d still collides at the end", arm)
	}
	is.NotEqual(r.Choices[0][last], r.Choices[1][last])
}

func TestDelayedPlayDeterminism(t *testing.T) {
	mab := newBernoulliMAB(t, 0.1, 0.5, 0.9)
	players := newKnownPlayers(t, 3, 2)

	a := sim.DelayedPlay(mab, players, 100, sim.OnlyUniqUserGetsReward, 1, 7)
	b := sim.DelayedPlay(mab, players, 100, sim.OnlyUniqUserGetsReward, 1, 7)

	is := assert.New(t)
	is.Equal(a.Choices, b.Choices)
	is.Equal(a.Rewards, b.Rewards)
	is.Equal(a.Collisions, b.Collisions)
}

func TestDelayedPlayDownsampling(t *testing.T) {
	mab := newBernoulliMAB(t, 0.1, 0.9)
	players := newKnownPlayers(t, 2, 2)

	r := sim.DelayedPlay(mab, players, 100, sim.OnlyUniqUserGetsReward, 10, 42)
	assert.Equal(t, 10, r.Duration())
}

func newKnownPlayers(t *testing.T, nbArms, nbPlayers int) []policy.Policy {
	t.Helper()

	players := make([]policy.Policy, nbPlayers)
	for i := range players {
		p, err := policy.NewMusicalChairKnownPlayers(nbArms, nbPlayers, newRNG(uint64(i)+1))
		require.NoError(t, err)
		players[i] = p
	}
	return players
}
