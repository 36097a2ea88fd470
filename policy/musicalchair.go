package policy

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Common errors.
var (
	ErrInvalidTime0     = errors.New("policy: Time0 must be positive")
	ErrInvalidNbPlayers = errors.New("policy: number of players must be positive")
	ErrInvalidNbArms    = errors.New("policy: number of arms must be positive")
)

// ChairState is the phase of the MusicalChair protocol. The progression
// is strictly monotonic: a player never re-enters the initial phase.
type ChairState int

const (
	// StateNotStarted is the state before StartGame.
	StateNotStarted ChairState = iota
	// StateInitialPhase is the uniform exploration phase used to
	// estimate the arm means and the number of players.
	StateInitialPhase
	// StateMusicalChair is the contention phase: pick a random candidate
	// arm and try to sit on it.
	StateMusicalChair
	// StateSitted is terminal: the player keeps its chair forever.
	StateSitted
)

func (s ChairState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateInitialPhase:
		return "InitialPhase"
	case StateMusicalChair:
		return "MusicalChair"
	case StateSitted:
		return "Sitted"
	default:
		return fmt.Sprintf("ChairState(%d)", int(s))
	}
}

// OptimalT0 returns the initial-phase length guaranteeing, per Theorem 1
// of [A Musical Chair approach, Shamir et al., 2015], constant regret
// with probability at least 1-delta for a mean-estimation error below
// epsilon.
//
// OptimalT0(2, 0.1, 0.05) == 18459.
func OptimalT0(nbArms int, epsilon, delta float64) int {
	k := float64(nbArms)
	t1 := (k / 2) * math.Log(2*k*k/delta)
	t2 := (16 * k / (epsilon * epsilon)) * math.Log(4*k*k/delta)
	t3 := k * k * math.Log10(2/(delta*delta)) / 0.02
	return int(math.Ceil(max(t1, t2, t3)))
}

// BoundOnFinalRegret returns the regret bound of the same theorem for
// the given initial-phase length and number of players.
func BoundOnFinalRegret(t0, nbPlayers int) float64 {
	return float64(t0*nbPlayers) + 2*math.Exp(2)*float64(nbPlayers)
}

// MusicalChair is the decentralized multi-agent policy from [Shamir et
// al., 2015]. Agents never exchange messages; observed collisions are
// the only coordination signal. Each agent explores uniformly for Time0
// steps, estimates the number of players from its collision count,
// restricts itself to the estimated top arms, then plays musical chairs
// until it finds an arm nobody contests and sits there forever.
type MusicalChair struct {
	nbArms int
	time0  int
	// givenPlayers is the player count supplied at construction, or 0
	// when the agent must estimate it itself.
	givenPlayers int

	state            ChairState
	chair            int // occupied arm, -1 while not seated
	nbPlayers        int // current estimate of N*
	cumulatedRewards []float64
	nbObservations   []int
	candidates       []int
	nbCollision      int
	t                int
	rng              *rand.Rand
}

// NewMusicalChair creates a player that estimates the population size
// itself. time0 is the initial-phase length: a value in (0, 1) is a
// fraction of the horizon, a value >= 1 an absolute step count.
func NewMusicalChair(nbArms int, time0 float64, horizon int, rng *rand.Rand) (*MusicalChair, error) {
	if nbArms < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNbArms, nbArms)
	}
	if time0 <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTime0, time0)
	}
	t0 := int(time0)
	if time0 < 1 {
		t0 = int(time0 * float64(horizon))
	}
	return newMusicalChair(nbArms, t0, 0, rng), nil
}

// NewMusicalChairKnownPlayers creates a player that is told the number
// of players upfront and therefore skips the initial phase entirely.
func NewMusicalChairKnownPlayers(nbArms, nbPlayers int, rng *rand.Rand) (*MusicalChair, error) {
	if nbArms < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNbArms, nbArms)
	}
	if nbPlayers < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidNbPlayers, nbPlayers)
	}
	return newMusicalChair(nbArms, 0, nbPlayers, rng), nil
}

func newMusicalChair(nbArms, time0, givenPlayers int, rng *rand.Rand) *MusicalChair {
	return &MusicalChair{
		nbArms:           nbArms,
		time0:            time0,
		givenPlayers:     givenPlayers,
		state:            StateNotStarted,
		chair:            -1,
		cumulatedRewards: make([]float64, nbArms),
		nbObservations:   make([]int, nbArms),
		rng:              rng,
	}
}

// StartGame resets the internal memory and decides where to start:
// the initial phase when the player count is unknown, the musical chair
// phase directly when it was given.
func (p *MusicalChair) StartGame() {
	p.t = -1
	p.chair = -1
	clear(p.cumulatedRewards)
	clear(p.nbObservations)
	p.nbCollision = 0
	p.nbPlayers = p.givenPlayers
	// A random permutation instead of an empty set, so a too-short
	// initial phase still leaves the player with something to play.
	p.candidates = p.rng.Perm(p.nbArms)
	if p.givenPlayers > 0 {
		p.state = StateMusicalChair
	} else {
		p.state = StateInitialPhase
	}
}

// Choice picks an arm for this step according to the current phase.
// Reaching an unknown phase is an internal-consistency failure and
// panics: it is a programming error, not a recoverable condition.
func (p *MusicalChair) Choice() int {
	p.t++
	if p.chair >= 0 {
		// We survived a full step on this chair without a collision:
		// it is ours now.
		p.state = StateSitted
		return p.chair
	}
	switch p.state {
	case StateInitialPhase:
		return p.rng.IntN(p.nbArms)
	case StateMusicalChair:
		arm := p.candidates[p.rng.IntN(len(p.candidates))]
		p.chair = arm
		return arm
	default:
		panic(fmt.Sprintf("policy: MusicalChair.Choice in unexpected state %v at t=%d", p.state, p.t))
	}
}

// GetReward records the observation during the initial phase; in later
// phases rewards carry no information the protocol uses.
func (p *MusicalChair) GetReward(arm int, reward float64) {
	if p.state == StateInitialPhase {
		p.nbObservations[arm]++
		p.cumulatedRewards[arm] += reward
	}
	p.maybeEndInitialPhase()
}

// HandleCollision reacts to a collision on the chosen arm: during the
// initial phase it only counts (no matter the arm); during the musical
// chair phase it evicts the player from its tentative chair.
func (p *MusicalChair) HandleCollision(arm int) {
	switch p.state {
	case StateInitialPhase:
		p.nbCollision++
	case StateMusicalChair:
		p.chair = -1
	}
	p.maybeEndInitialPhase()
}

func (p *MusicalChair) maybeEndInitialPhase() {
	if p.state == StateInitialPhase && p.t+1 >= p.time0 {
		p.endInitialPhase()
	}
}

// endInitialPhase runs exactly once: estimate N* from the collision
// count, then shrink the candidate set to the top-N* empirical means.
func (p *MusicalChair) endInitialPhase() {
	p.state = StateMusicalChair

	means := make([]float64, p.nbArms)
	for arm := range means {
		if p.nbObservations[arm] == 0 {
			// Never observed: rank last in the descending sort.
			means[arm] = math.Inf(-1)
		} else {
			means[arm] = p.cumulatedRewards[arm] / float64(p.nbObservations[arm])
		}
	}

	if p.nbCollision == p.time0 {
		// Every initial step was a collision: pessimistic estimate.
		p.nbPlayers = p.nbArms
	} else {
		ratio := float64(p.time0-p.nbCollision) / float64(p.time0)
		estimate := math.Round(1 + math.Log(ratio)/math.Log(1-1/float64(p.nbArms)))
		p.nbPlayers = min(p.nbArms, max(1, int(estimate)))
	}

	order := make([]int, p.nbArms)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return means[order[i]] > means[order[j]]
	})
	p.candidates = order[:p.nbPlayers]
}

// State returns the current protocol phase.
func (p *MusicalChair) State() ChairState {
	return p.state
}

// Chair returns the occupied arm, or -1 while the player is not seated.
func (p *MusicalChair) Chair() int {
	return p.chair
}

// NbPlayers returns the current estimate of the number of players (the
// given count before the initial phase ends, when one was supplied).
func (p *MusicalChair) NbPlayers() int {
	return p.nbPlayers
}

// EstimatedOrder returns the arm indices sorted by increasing empirical
// mean over the initial-phase observations, never-observed arms ranked
// as best.
func (p *MusicalChair) EstimatedOrder() []int {
	return orderByMean(p.nbObservations, p.cumulatedRewards)
}

// Candidates returns the current candidate arm set.
func (p *MusicalChair) Candidates() []int {
	return p.candidates
}

// Clone returns a fresh, unstarted MusicalChair with the same
// parameters, wired to the replicate's RNG.
func (p *MusicalChair) Clone(rng *rand.Rand) Policy {
	return newMusicalChair(p.nbArms, p.time0, p.givenPlayers, rng)
}

func (p *MusicalChair) String() string {
	return fmt.Sprintf("MusicalChair(T0: %d)", p.time0)
}
