package policy

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// Tolerance used when comparing two sub-sample means. Near-equal means
// are treated as a tie and broken by pull counts. Must not be zero.
const besaTolerance = 1e-5

// Common errors.
var (
	ErrTooFewArms     = errors.New("policy: BESA needs at least 2 arms")
	ErrInvalidHorizon = errors.New("policy: horizon must be positive")
)

// SubsampleFunc picks n distinct indices from [0, m). BESA uses it to
// draw equally-sized sub-samples from two arms' reward histories.
type SubsampleFunc func(rng *rand.Rand, n, m int) []int

// SubsampleUniform picks n indices uniformly at random without
// replacement. This is the sampler BESA is designed around.
func SubsampleUniform(rng *rand.Rand, n, m int) []int {
	return rng.Perm(m)[:n]
}

// SubsampleDeterministic picks the first n indices chronologically.
// Only useful to make comparisons reproducible in tests; production
// comparisons need SubsampleUniform to stay unbiased.
func SubsampleDeterministic(rng *rand.Rand, n, m int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// besaTwoActions decides between arms a and b by comparing sub-sample
// means of common size N = min(pulls[a], pulls[b]):
//
//   - the arm with the strictly larger sub-sample mean (beyond the
//     tolerance) wins,
//   - on a tie, the arm with fewer pulls wins,
//   - with equal pulls the winner is uniform at random.
func besaTwoActions(rng *rand.Rand, allRewards [][]float64, pulls []int, a, b int, subsample SubsampleFunc) int {
	if a == b {
		return a
	}
	na, nb := pulls[a], pulls[b]
	n := min(na, nb)

	meanA := subsampleMean(rng, allRewards[a], n, na, subsample)
	meanB := subsampleMean(rng, allRewards[b], n, nb, subsample)

	switch {
	case meanA > meanB+besaTolerance:
		return a
	case meanB > meanA+besaTolerance:
		return b
	case na < nb:
		return a
	case na > nb:
		return b
	default:
		if rng.IntN(2) == 0 {
			return a
		}
		return b
	}
}

func subsampleMean(rng *rand.Rand, history []float64, n, m int, subsample SubsampleFunc) float64 {
	sample := make([]float64, n)
	for i, j := range subsample(rng, n, m) {
		sample[i] = history[j]
	}
	return stat.Mean(sample, nil)
}

// besaKActions runs the randomized divide-and-conquer tournament over an
// action list that the caller already shuffled: split in halves, pick a
// winner on each side, then settle the final with besaTwoActions.
func besaKActions(rng *rand.Rand, allRewards [][]float64, pulls []int, actions []int, subsample SubsampleFunc) int {
	switch len(actions) {
	case 1:
		return actions[0]
	case 2:
		return besaTwoActions(rng, allRewards, pulls, actions[0], actions[1], subsample)
	default:
		left := besaKActions(rng, allRewards, pulls, actions[:len(actions)/2], subsample)
		right := besaKActions(rng, allRewards, pulls, actions[len(actions)/2:], subsample)
		return besaTwoActions(rng, allRewards, pulls, left, right, subsample)
	}
}

// BESA is the Best Empirical Sampled Average policy (Baransi et al.,
// 2014). Instead of index formulas it compares arms pairwise on random
// sub-samples of equal size, which removes the bias of comparing arms
// pulled unequally often.
//
// The price is memory: BESA keeps the full reward history of every arm,
// O(nbArms x horizon). That is a deliberate trade-off; the algorithm is
// only simple and unbiased with the complete history available.
type BESA struct {
	tracker
	horizon    int
	subsample  SubsampleFunc
	random     bool
	allRewards [][]float64
	actions    []int
	rng        *rand.Rand
}

// NewBESA creates a BESA policy for nbArms arms over the given horizon.
// A nil subsample selects SubsampleUniform; pass SubsampleDeterministic
// only in tests.
func NewBESA(nbArms, horizon int, rng *rand.Rand, subsample SubsampleFunc) (*BESA, error) {
	if nbArms < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewArms, nbArms)
	}
	if horizon < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidHorizon, horizon)
	}
	random := subsample == nil
	if random {
		subsample = SubsampleUniform
	}
	allRewards := make([][]float64, nbArms)
	for i := range allRewards {
		allRewards[i] = make([]float64, horizon)
	}
	actions := make([]int, nbArms)
	for i := range actions {
		actions[i] = i
	}
	return &BESA{
		tracker:    newTracker(nbArms),
		horizon:    horizon,
		subsample:  subsample,
		random:     random,
		allRewards: allRewards,
		actions:    actions,
		rng:        rng,
	}, nil
}

// StartGame resets the bookkeeping and the reward history.
func (p *BESA) StartGame() {
	p.startGame()
	for i := range p.allRewards {
		clear(p.allRewards[i])
	}
	for i := range p.actions {
		p.actions[i] = i
	}
}

// Choice applies the BESA procedure to the current history. While some
// arm is still unpulled in the first rounds it forces exploration of a
// random unpulled arm; afterwards it shuffles the arm set and runs the
// tournament.
func (p *BESA) Choice() int {
	p.t++
	if p.t <= p.nbArms {
		if unpulled := p.unpulledArms(); len(unpulled) > 0 {
			return unpulled[p.rng.IntN(len(unpulled))]
		}
	}
	p.rng.Shuffle(len(p.actions), func(i, j int) {
		p.actions[i], p.actions[j] = p.actions[j], p.actions[i]
	})
	return besaKActions(p.rng, p.allRewards, p.pulls, p.actions, p.subsample)
}

func (p *BESA) unpulledArms() []int {
	var unpulled []int
	for arm, n := range p.pulls {
		if n < 1 {
			unpulled = append(unpulled, arm)
		}
	}
	return unpulled
}

// GetReward appends the reward to the arm's own history, indexed by that
// arm's observation count, before the shared bookkeeping. No reward
// normalization is needed; that is one of BESA's strong points.
func (p *BESA) GetReward(arm int, reward float64) {
	p.allRewards[arm][p.pulls[arm]] = reward
	p.getReward(arm, reward)
}

// HandleCollision is a no-op: BESA ignores collisions.
func (p *BESA) HandleCollision(arm int) {}

// EstimatedOrder returns the arm indices sorted by increasing empirical
// mean, with unpulled arms ranked as best (see tracker.estimatedOrder).
func (p *BESA) EstimatedOrder() []int {
	return p.estimatedOrder()
}

// Clone returns a fresh, unstarted BESA with the same parameters, wired
// to the replicate's RNG.
func (p *BESA) Clone(rng *rand.Rand) Policy {
	sub := p.subsample
	if p.random {
		sub = nil
	}
	clone, err := NewBESA(p.nbArms, p.horizon, rng, sub)
	if err != nil {
		// Parameters were validated when p was built.
		panic(err)
	}
	return clone
}

func (p *BESA) String() string {
	if !p.random {
		return "BESA(non-random subsample)"
	}
	return "BESA"
}
