// Package sim runs bandit simulations: single- and multi-agent replicate
// drivers, collision resolution, per-replicate result sinks, and the
// evaluators that fan replicates out over workers and merge trajectories
// into population statistics.
package sim

import "errors"

// Common errors.
var (
	ErrNoEnvs             = errors.New("sim: at least one environment is required")
	ErrNoPolicies         = errors.New("sim: at least one policy is required")
	ErrNoPlayers          = errors.New("sim: at least one player is required")
	ErrInvalidHorizon     = errors.New("sim: horizon must be positive")
	ErrInvalidRepetitions = errors.New("sim: repetitions must be positive")
	ErrInvalidDeltaTSave  = errors.New("sim: delta_t_save must be positive")
)

// Result is the append-only trajectory of one single-agent replicate:
// the chosen arm and observed reward at every step, plus final per-arm
// pull counts. It is owned by exactly one replicate and merged
// additively into the evaluator's accumulators afterwards.
type Result struct {
	Choices []int
	Rewards []float64
	Pulls   []int
}

// NewResult allocates a trajectory sink for one replicate.
func NewResult(nbArms, horizon int) *Result {
	return &Result{
		Choices: make([]int, horizon),
		Rewards: make([]float64, horizon),
		Pulls:   make([]int, nbArms),
	}
}

// Store appends the step-t outcome.
func (r *Result) Store(t, choice int, reward float64) {
	r.Choices[t] = choice
	r.Rewards[t] = reward
	r.Pulls[choice]++
}

// ResultMultiPlayers is the trajectory of one multi-agent replicate.
// Steps are saved every deltaTSave-th step to bound memory over long
// horizons; pull counts accumulate over the saved steps.
type ResultMultiPlayers struct {
	deltaTSave int

	// Choices and Rewards are player-major: Choices[player][savedStep].
	Choices [][]int
	Rewards [][]float64
	// Pulls is player-major over arms: Pulls[player][arm].
	Pulls [][]int
	// Collisions is arm-major over saved steps:
	// Collisions[arm][savedStep] is the number of players that collided
	// on that arm at that step.
	Collisions [][]int
}

// NewResultMultiPlayers allocates a multi-agent trajectory sink saving
// one entry every deltaTSave steps.
func NewResultMultiPlayers(nbArms, horizon, nbPlayers, deltaTSave int) *ResultMultiPlayers {
	duration := horizon / deltaTSave
	r := &ResultMultiPlayers{
		deltaTSave: deltaTSave,
		Choices:    make([][]int, nbPlayers),
		Rewards:    make([][]float64, nbPlayers),
		Pulls:      make([][]int, nbPlayers),
		Collisions: make([][]int, nbArms),
	}
	for i := range r.Choices {
		r.Choices[i] = make([]int, duration)
		r.Rewards[i] = make([]float64, duration)
		r.Pulls[i] = make([]int, nbArms)
	}
	for arm := range r.Collisions {
		r.Collisions[arm] = make([]int, duration)
	}
	return r
}

// Duration returns the number of saved steps.
func (r *ResultMultiPlayers) Duration() int {
	if len(r.Collisions) == 0 {
		return 0
	}
	return len(r.Collisions[0])
}

// Store saves the step-t outcome if t falls on the down-sampling stride.
func (r *ResultMultiPlayers) Store(t int, choices []int, rewards []float64, pulls [][]int, collisions []int) {
	if t%r.deltaTSave != 0 {
		return
	}
	idx := t / r.deltaTSave
	if idx >= r.Duration() {
		return
	}
	for player := range r.Choices {
		r.Choices[player][idx] = choices[player]
		r.Rewards[player][idx] = rewards[player]
		for arm := range r.Pulls[player] {
			r.Pulls[player][arm] += pulls[player][arm]
		}
	}
	for arm := range r.Collisions {
		r.Collisions[arm][idx] = collisions[arm]
	}
}
