// Command banditsim runs a bandit simulation described by a YAML config
// and prints the final statistics.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
	"github.com/alextanhongpin/bandit/sim"
)

func main() {
	var (
		configPath string
		multi      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to the YAML simulation config")
	flag.BoolVar(&multi, "multi", false, "Run the policies as players sharing the environment")
	flag.Parse()

	if configPath == "" {
		log.Fatalf("missing flag 'config'. Try running with go run github.com/alextanhongpin/bandit/cmd/banditsim -config sim.yaml")
	}

	cfg, err := sim.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(cfg, multi, logger); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}
}

func run(cfg *sim.Config, multi bool, logger *slog.Logger) error {
	mab, err := cfg.BuildEnv()
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	policies, err := cfg.BuildPolicies(mab.NbArms(), rng)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if multi {
		return runMulti(ctx, cfg, mab, policies, logger)
	}
	return runSingle(ctx, cfg, mab, policies, logger)
}

func runSingle(ctx context.Context, cfg *sim.Config, mab *env.MAB, policies []policy.Policy, logger *slog.Logger) error {
	ev, err := sim.NewEvaluator(sim.EvaluatorConfig{
		Envs:           []*env.MAB{mab},
		Policies:       policies,
		Horizon:        cfg.Horizon,
		Repetitions:    cfg.Repetitions,
		MaxConcurrency: cfg.MaxConcurrency,
		BaseSeed:       cfg.Seed,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	if err := ev.Start(ctx); err != nil {
		return err
	}

	for polID, pol := range policies {
		regret := ev.MeanRegret(polID, 0)
		logger.Info("policy result",
			slog.String("policy", pol.String()),
			slog.Float64("final_mean_regret", regret[len(regret)-1]),
			slog.Any("mean_pulls", ev.MeanPulls(polID, 0)),
		)
	}
	return nil
}

func runMulti(ctx context.Context, cfg *sim.Config, mab *env.MAB, players []policy.Policy, logger *slog.Logger) error {
	ev, err := sim.NewEvaluatorMultiPlayers(sim.EvaluatorMultiPlayersConfig{
		Envs:           []*env.MAB{mab},
		Players:        players,
		Horizon:        cfg.Horizon,
		Repetitions:    cfg.Repetitions,
		DeltaTSave:     cfg.DeltaTSave,
		CollisionModel: cfg.BuildCollisionModel(),
		MaxConcurrency: cfg.MaxConcurrency,
		BaseSeed:       cfg.Seed,
		Logger:         logger,
	})
	if err != nil {
		return err
	}
	if err := ev.Start(ctx); err != nil {
		return err
	}

	regret := ev.CentralizedRegret(0)
	fairness := ev.FairnessIndex(0)
	lower, anandkumar := ev.LowerBound(0)
	logger.Info("group result",
		slog.Float64("final_centralized_regret", regret[len(regret)-1]),
		slog.Float64("final_fairness", fairness[len(fairness)-1]),
		slog.Float64("lower_bound", lower),
		slog.Float64("anandkumar_lower_bound", anandkumar),
	)
	for p, pol := range players {
		rewards := ev.MeanRewards(p, 0)
		logger.Info("player result",
			slog.Int("player", p),
			slog.String("policy", pol.String()),
			slog.Float64("final_mean_cumulative_reward", rewards[len(rewards)-1]),
		)
	}
	return nil
}
