package sim

import (
	"math/rand/v2"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
)

// Play runs one single-agent replicate over the full horizon and returns
// its trajectory.
//
// The environment and the policy are cloned first, so concurrent
// replicates never share mutable state, and the replicate's RNG is
// seeded deterministically from seed: equal seeds give equal
// trajectories.
func Play(mab *env.MAB, pol policy.Policy, horizon int, seed uint64) *Result {
	rng := rand.New(rand.NewPCG(seed, seed))
	m := mab.Clone()
	p := pol.Clone(rng)
	p.StartGame()

	result := NewResult(m.NbArms(), horizon)
	for t := range horizon {
		choice := p.Choice()
		reward := m.Arm(choice).Draw(rng, t)
		p.GetReward(choice, reward)
		result.Store(t, choice, reward)
	}
	return result
}

// DelayedPlay runs one multi-agent replicate: every step it collects all
// players' simultaneous choices and hands them to the collision model,
// which is solely responsible for rewarding or colliding each player.
// Steps are recorded every deltaTSave-th step.
//
// All players of the replicate share the replicate-owned RNG; replicates
// with equal seeds give equal trajectories.
func DelayedPlay(mab *env.MAB, players []policy.Policy, horizon int, cm CollisionModel, deltaTSave int, seed uint64) *ResultMultiPlayers {
	rng := rand.New(rand.NewPCG(seed, seed))
	m := mab.Clone()
	nbArms := m.NbArms()
	nbPlayers := len(players)

	clones := make([]policy.Policy, nbPlayers)
	for i, p := range players {
		clones[i] = p.Clone(rng)
		clones[i].StartGame()
	}

	result := NewResultMultiPlayers(nbArms, horizon, nbPlayers, deltaTSave)
	choices := make([]int, nbPlayers)
	rewards := make([]float64, nbPlayers)
	pulls := make([][]int, nbPlayers)
	for i := range pulls {
		pulls[i] = make([]int, nbArms)
	}
	collisions := make([]int, nbArms)

	for t := range horizon {
		clear(rewards)
		clear(collisions)
		for i := range pulls {
			clear(pulls[i])
		}
		for i, p := range clones {
			choices[i] = p.Choice()
		}
		cm(t, m, clones, choices, rewards, pulls, collisions, rng)
		result.Store(t, choices, rewards, pulls, collisions)
	}
	return result
}
