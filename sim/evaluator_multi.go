package sim

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
)

// EvaluatorMultiPlayersConfig describes one multi-agent evaluation:
// a fixed group of players sharing each environment through a collision
// model.
type EvaluatorMultiPlayersConfig struct {
	Envs        []*env.MAB
	Players     []policy.Policy
	Horizon     int
	Repetitions int

	// DeltaTSave thins the recorded trajectories: only every
	// DeltaTSave-th step is kept. Zero means keep every step.
	DeltaTSave int

	// CollisionModel arbitrates simultaneous picks of the same arm.
	// Nil means OnlyUniqUserGetsReward.
	CollisionModel CollisionModel

	MaxConcurrency int
	BaseSeed       uint64

	Logger  *slog.Logger
	Metrics MetricsCollector
}

func (c *EvaluatorMultiPlayersConfig) validate() error {
	if len(c.Envs) == 0 {
		return ErrNoEnvs
	}
	if len(c.Players) == 0 {
		return ErrNoPlayers
	}
	if c.Horizon < 1 {
		return ErrInvalidHorizon
	}
	if c.Repetitions < 1 {
		return ErrInvalidRepetitions
	}
	if c.DeltaTSave < 0 {
		return ErrInvalidDeltaTSave
	}
	return nil
}

// EvaluatorMultiPlayers runs many independent multi-agent replicates
// and merges their trajectories. Like Evaluator, all accumulators are
// written only by the single-threaded merge step.
type EvaluatorMultiPlayers struct {
	cfg      EvaluatorMultiPlayersConfig
	id       string
	logger   *slog.Logger
	metrics  MetricsCollector
	cm       CollisionModel
	duration int

	// Per environment, summed over replicates:
	//   rewards[env][player][s]     cumulative reward at saved step s
	//   pulls[env][player][arm]     total pulls
	//   collisions[env][arm][s]     collision counts in the save window
	//   nbSwitches[env][player][s]  arm-change indicators
	//   bestArmPulls[env][player][s] picks of an optimal arm
	//   freeTransmissions[env][player][s] collision-free picks
	rewards           [][][]float64
	pulls             [][][]int
	collisions        [][][]int
	nbSwitches        [][][]int
	bestArmPulls      [][][]int
	freeTransmissions [][][]int
}

// NewEvaluatorMultiPlayers validates the configuration and allocates
// the accumulators.
func NewEvaluatorMultiPlayers(cfg EvaluatorMultiPlayersConfig) (*EvaluatorMultiPlayers, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.DeltaTSave == 0 {
		cfg.DeltaTSave = 1
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
	if cfg.CollisionModel == nil {
		cfg.CollisionModel = DefaultCollisionModel
	}

	nbPlayers := len(cfg.Players)
	duration := cfg.Horizon / cfg.DeltaTSave
	e := &EvaluatorMultiPlayers{
		cfg:               cfg,
		id:                uuid.NewString(),
		logger:            cfg.Logger,
		metrics:           cfg.Metrics,
		cm:                cfg.CollisionModel,
		duration:          duration,
		rewards:           make([][][]float64, len(cfg.Envs)),
		pulls:             make([][][]int, len(cfg.Envs)),
		collisions:        make([][][]int, len(cfg.Envs)),
		nbSwitches:        make([][][]int, len(cfg.Envs)),
		bestArmPulls:      make([][][]int, len(cfg.Envs)),
		freeTransmissions: make([][][]int, len(cfg.Envs)),
	}
	for envID, mab := range cfg.Envs {
		nbArms := mab.NbArms()
		e.rewards[envID] = make([][]float64, nbPlayers)
		e.pulls[envID] = make([][]int, nbPlayers)
		e.nbSwitches[envID] = make([][]int, nbPlayers)
		e.bestArmPulls[envID] = make([][]int, nbPlayers)
		e.freeTransmissions[envID] = make([][]int, nbPlayers)
		for p := range nbPlayers {
			e.rewards[envID][p] = make([]float64, duration)
			e.pulls[envID][p] = make([]int, nbArms)
			e.nbSwitches[envID][p] = make([]int, duration)
			e.bestArmPulls[envID][p] = make([]int, duration)
			e.freeTransmissions[envID][p] = make([]int, duration)
		}
		e.collisions[envID] = make([][]int, nbArms)
		for arm := range nbArms {
			e.collisions[envID][arm] = make([]int, duration)
		}
	}
	return e, nil
}

// ID returns the unique identifier of this evaluation run.
func (e *EvaluatorMultiPlayers) ID() string {
	return e.id
}

// NbPlayers returns the size of the player group.
func (e *EvaluatorMultiPlayers) NbPlayers() int {
	return len(e.cfg.Players)
}

// Duration returns the number of saved steps per replicate.
func (e *EvaluatorMultiPlayers) Duration() int {
	return e.duration
}

// Start evaluates the player group on every environment.
func (e *EvaluatorMultiPlayers) Start(ctx context.Context) error {
	start := time.Now()
	defer func() {
		e.metrics.SetRunDuration(time.Since(start))
	}()

	for envID, mab := range e.cfg.Envs {
		e.logger.Info("evaluating environment",
			slog.String("run_id", e.id),
			slog.Int("env", envID),
			slog.String("arms", mab.String()),
			slog.Int("players", len(e.cfg.Players)),
			slog.Int("repetitions", e.cfg.Repetitions),
		)

		results := make([]*ResultMultiPlayers, e.cfg.Repetitions)
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(e.cfg.MaxConcurrency)
		for rep := range e.cfg.Repetitions {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				start := time.Now()
				results[rep] = DelayedPlay(mab, e.cfg.Players, e.cfg.Horizon, e.cm, e.cfg.DeltaTSave, e.cfg.BaseSeed+uint64(rep))
				e.metrics.IncReplicateCount()
				e.metrics.ObserveReplicateDuration(time.Since(start))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		best := e.cfg.Envs[envID].BestArms(1e-9)
		for _, r := range results {
			e.merge(envID, best, r)
		}
	}
	return nil
}

func (e *EvaluatorMultiPlayers) merge(envID int, bestArms []int, r *ResultMultiPlayers) {
	isBest := make(map[int]bool, len(bestArms))
	for _, arm := range bestArms {
		isBest[arm] = true
	}

	for p := range e.cfg.Players {
		cum := 0.0
		for s := range e.duration {
			cum += r.Rewards[p][s]
			e.rewards[envID][p][s] += cum

			choice := r.Choices[p][s]
			if s >= 1 && choice != r.Choices[p][s-1] {
				e.nbSwitches[envID][p][s]++
			}
			if isBest[choice] {
				e.bestArmPulls[envID][p][s]++
			}
			if r.Collisions[choice][s] == 0 {
				e.freeTransmissions[envID][p][s]++
			}
		}
		for arm, n := range r.Pulls[p] {
			e.pulls[envID][p][arm] += n
		}
	}
	for arm := range r.Collisions {
		for s, n := range r.Collisions[arm] {
			e.collisions[envID][arm][s] += n
		}
	}
}

// MeanRewards returns one player's cumulative reward at every saved
// step, averaged over replicates.
func (e *EvaluatorMultiPlayers) MeanRewards(playerID, envID int) []float64 {
	out := make([]float64, e.duration)
	for s, sum := range e.rewards[envID][playerID] {
		out[s] = sum / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanNbSwitches returns the fraction of replicates in which the player
// changed arm at every saved step.
func (e *EvaluatorMultiPlayers) MeanNbSwitches(playerID, envID int) []float64 {
	out := make([]float64, e.duration)
	for s, n := range e.nbSwitches[envID][playerID] {
		out[s] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanBestArmPulls returns the fraction of replicates in which the
// player picked one of the optimal arms at every saved step.
func (e *EvaluatorMultiPlayers) MeanBestArmPulls(playerID, envID int) []float64 {
	out := make([]float64, e.duration)
	for s, n := range e.bestArmPulls[envID][playerID] {
		out[s] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanFreeTransmissions returns the fraction of replicates in which the
// player transmitted without collision at every saved step.
func (e *EvaluatorMultiPlayers) MeanFreeTransmissions(playerID, envID int) []float64 {
	out := make([]float64, e.duration)
	for s, n := range e.freeTransmissions[envID][playerID] {
		out[s] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanPulls returns one player's per-arm pull counts over the saved
// steps, averaged over replicates.
func (e *EvaluatorMultiPlayers) MeanPulls(playerID, envID int) []float64 {
	pulls := e.pulls[envID][playerID]
	out := make([]float64, len(pulls))
	for arm, n := range pulls {
		out[arm] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}

// MeanCollisions returns the per-arm collision counts at every saved
// step, averaged over replicates.
func (e *EvaluatorMultiPlayers) MeanCollisions(arm, envID int) []float64 {
	out := make([]float64, e.duration)
	for s, n := range e.collisions[envID][arm] {
		out[s] = float64(n) / float64(e.cfg.Repetitions)
	}
	return out
}

// CentralizedRegret returns the cumulative regret of the whole group at
// every saved step: the best achievable sum of means (the top-M arms,
// with the surplus players parked on the worst arm when the group
// outnumbers the arms) times elapsed time, minus the group's actual
// mean cumulative reward.
func (e *EvaluatorMultiPlayers) CentralizedRegret(envID int) []float64 {
	mab := e.cfg.Envs[envID]
	means := mab.Means()
	sorted := append([]float64(nil), means...)
	sort.Float64s(sorted)

	nbPlayers := len(e.cfg.Players)
	nbArms := mab.NbArms()
	bestMeansSum := 0.0
	if nbPlayers <= nbArms {
		for _, mu := range sorted[nbArms-nbPlayers:] {
			bestMeansSum += mu
		}
	} else {
		// More players than arms: every arm is occupied and the surplus
		// players pile onto the worst arm, losing its payoff to
		// collisions.
		for _, mu := range sorted {
			bestMeansSum += mu
		}
		bestMeansSum -= sorted[0]
	}

	out := make([]float64, e.duration)
	for s := range out {
		elapsed := float64((s + 1) * e.cfg.DeltaTSave)
		group := 0.0
		for p := range nbPlayers {
			group += e.rewards[envID][p][s]
		}
		out[s] = elapsed*bestMeansSum - group/float64(e.cfg.Repetitions)
	}
	return out
}

// FairnessIndex returns (max-min)/max of the players' mean cumulative
// rewards at every saved step; 0 is perfectly fair.
func (e *EvaluatorMultiPlayers) FairnessIndex(envID int) []float64 {
	out := make([]float64, e.duration)
	for s := range out {
		lo, hi := e.rewards[envID][0][s], e.rewards[envID][0][s]
		for p := 1; p < len(e.cfg.Players); p++ {
			v := e.rewards[envID][p][s]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if hi > 0 {
			out[s] = (hi - lo) / hi
		}
	}
	return out
}

// LowerBound returns the two asymptotic lower bounds on the centralized
// regret for this environment and group size.
func (e *EvaluatorMultiPlayers) LowerBound(envID int) (lowerBound, anandkumarLowerBound float64) {
	return e.cfg.Envs[envID].LowerBoundMultiplayers(len(e.cfg.Players))
}
