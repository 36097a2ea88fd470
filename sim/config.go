package sim

import (
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
)

// ArmConfig describes one arm of the environment.
type ArmConfig struct {
	// Type is one of "bernoulli", "gaussian", "exponential".
	Type  string  `yaml:"type"`
	Mean  float64 `yaml:"mean"`
	Sigma float64 `yaml:"sigma,omitempty"`
	Rate  float64 `yaml:"rate,omitempty"`
}

// PolicyConfig describes one policy (or one player, in a multi-agent
// run).
type PolicyConfig struct {
	// Type is one of "besa", "musicalchair".
	Type string `yaml:"type"`

	// Time0 configures MusicalChair's initial phase; values in (0, 1)
	// are a fraction of the horizon.
	Time0 float64 `yaml:"time0,omitempty"`

	// NbPlayers, when positive, lets MusicalChair skip the initial
	// phase entirely.
	NbPlayers int `yaml:"nb_players,omitempty"`
}

// Config is the YAML shape of a whole simulation.
type Config struct {
	Horizon        int            `yaml:"horizon"`
	Repetitions    int            `yaml:"repetitions"`
	MaxConcurrency int            `yaml:"max_concurrency,omitempty"`
	Seed           uint64         `yaml:"seed,omitempty"`
	DeltaTSave     int            `yaml:"delta_t_save,omitempty"`
	Arms           []ArmConfig    `yaml:"arms"`
	Policies       []PolicyConfig `yaml:"policies"`

	// CollisionModel is one of "only_uniq", "no_collision",
	// "random_winner". Empty means "only_uniq".
	CollisionModel string `yaml:"collision_model,omitempty"`
}

// LoadConfig reads and validates a YAML simulation config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sim: parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the config for structural errors before anything is
// built from it.
func (c *Config) Validate() error {
	if c.Horizon < 1 {
		return ErrInvalidHorizon
	}
	if c.Repetitions < 1 {
		return ErrInvalidRepetitions
	}
	if c.DeltaTSave < 0 {
		return ErrInvalidDeltaTSave
	}
	if len(c.Arms) == 0 {
		return ErrNoEnvs
	}
	if len(c.Policies) == 0 {
		return ErrNoPolicies
	}
	for i, arm := range c.Arms {
		switch arm.Type {
		case "bernoulli", "gaussian", "exponential":
		default:
			return fmt.Errorf("sim: arm %d: unknown type %q", i, arm.Type)
		}
	}
	for i, pol := range c.Policies {
		switch pol.Type {
		case "besa", "musicalchair":
		default:
			return fmt.Errorf("sim: policy %d: unknown type %q", i, pol.Type)
		}
	}
	switch c.CollisionModel {
	case "", "only_uniq", "no_collision", "random_winner":
	default:
		return fmt.Errorf("sim: unknown collision model %q", c.CollisionModel)
	}
	return nil
}

// BuildEnv constructs the environment described by Arms.
func (c *Config) BuildEnv() (*env.MAB, error) {
	arms := make([]env.Arm, len(c.Arms))
	for i, ac := range c.Arms {
		var (
			arm env.Arm
			err error
		)
		switch ac.Type {
		case "bernoulli":
			arm, err = env.NewBernoulli(ac.Mean)
		case "gaussian":
			arm, err = env.NewGaussian(ac.Mean, ac.Sigma)
		case "exponential":
			arm, err = env.NewExponential(ac.Rate)
		default:
			err = fmt.Errorf("sim: unknown arm type %q", ac.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("sim: arm %d: %w", i, err)
		}
		arms[i] = arm
	}
	return env.NewMAB(arms...)
}

// BuildPolicies constructs the policies described by Policies. The
// returned policies hold the given rng only as a prototype source;
// replicates re-seed through Clone.
func (c *Config) BuildPolicies(nbArms int, rng *rand.Rand) ([]policy.Policy, error) {
	policies := make([]policy.Policy, len(c.Policies))
	for i, pc := range c.Policies {
		var (
			pol policy.Policy
			err error
		)
		switch pc.Type {
		case "besa":
			pol, err = policy.NewBESA(nbArms, c.Horizon, rng, nil)
		case "musicalchair":
			if pc.NbPlayers > 0 {
				pol, err = policy.NewMusicalChairKnownPlayers(nbArms, pc.NbPlayers, rng)
			} else {
				pol, err = policy.NewMusicalChair(nbArms, pc.Time0, c.Horizon, rng)
			}
		default:
			err = fmt.Errorf("sim: unknown policy type %q", pc.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("sim: policy %d: %w", i, err)
		}
		policies[i] = pol
	}
	return policies, nil
}

// BuildCollisionModel maps the configured name to its implementation.
func (c *Config) BuildCollisionModel() CollisionModel {
	switch c.CollisionModel {
	case "no_collision":
		return NoCollision
	case "random_winner":
		return RandomWinnerGetsReward
	default:
		return OnlyUniqUserGetsReward
	}
}
