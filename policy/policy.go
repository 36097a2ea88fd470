// Package policy implements the decision-making side of the bandit
// simulation: the Policy contract shared by every algorithm, the BESA
// sub-sampling policy and the MusicalChair multi-agent protocol.
//
// Policies are single-goroutine state machines driven by the sim package:
// StartGame resets, then each step is one Choice followed by exactly one
// GetReward or HandleCollision. Randomness is never ambient; every policy
// owns the *rand.Rand its replicate injected, which is what makes
// replicates reproducible and safe to run in parallel.
package policy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Policy is a stateful decision-maker over a fixed set of arms.
//
// The call order contract is owned by the driver, not the policy:
// StartGame first, then alternating Choice and exactly one of GetReward
// or HandleCollision per step. Behavior under a violated order is
// undefined.
type Policy interface {
	fmt.Stringer

	// StartGame resets all internal state for a fresh replicate.
	StartGame()

	// Choice returns the arm to pull this step, in [0, nbArms), and
	// advances the internal step counter.
	Choice() int

	// GetReward records the reward observed on the arm returned by the
	// most recent Choice.
	GetReward(arm int, reward float64)

	// HandleCollision is called instead of GetReward when the agent's
	// chosen arm collided with another agent this step.
	HandleCollision(arm int)

	// EstimatedOrder returns a permutation of the arm indices ordered by
	// increasing empirical mean, with never-observed arms ranked last
	// (i.e. as the best arms).
	EstimatedOrder() []int

	// Clone returns a fresh, unstarted copy of this policy wired to the
	// given replicate-owned RNG.
	Clone(rng *rand.Rand) Policy
}

// tracker is the bookkeeping shared by all policies: steps elapsed, pull
// counts and cumulative rewards per arm.
//
// Invariant: after t+1 Choice/GetReward pairs, the pull counts sum to
// t+1.
type tracker struct {
	nbArms  int
	t       int // steps elapsed, -1 before the first choice
	pulls   []int
	rewards []float64
}

func newTracker(nbArms int) tracker {
	return tracker{
		nbArms:  nbArms,
		t:       -1,
		pulls:   make([]int, nbArms),
		rewards: make([]float64, nbArms),
	}
}

func (b *tracker) startGame() {
	b.t = -1
	clear(b.pulls)
	clear(b.rewards)
}

func (b *tracker) getReward(arm int, reward float64) {
	b.pulls[arm]++
	b.rewards[arm] += reward
}

func (b *tracker) estimatedOrder() []int {
	return orderByMean(b.pulls, b.rewards)
}

// orderByMean returns a permutation of the arm indices ordering them by
// increasing empirical mean. Arms never pulled get a +Inf estimate, so
// they sort last, i.e. they are ranked as the best arms. This mirrors
// the historical behavior callers depend on; do not "fix" it.
func orderByMean(pulls []int, rewards []float64) []int {
	means := make([]float64, len(pulls))
	for i := range means {
		if pulls[i] < 1 {
			means[i] = math.Inf(1)
		} else {
			means[i] = rewards[i] / float64(pulls[i])
		}
	}
	order := make([]int, len(pulls))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] < means[order[j]]
	})
	return order
}
