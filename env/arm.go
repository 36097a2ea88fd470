// Package env provides the simulated environments a bandit policy plays
// against: reward-generating arms and the MAB (multi-armed bandit)
// collection that owns them.
//
// Arms never share random state. Every draw goes through the RNG owned by
// the calling replicate, so independent replicates stay reproducible and
// isolated (see the sim package).
package env

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Common errors.
var (
	ErrInvalidProbability = errors.New("env: probability must be in [0, 1]")
	ErrInvalidSigma       = errors.New("env: sigma must be positive")
	ErrInvalidRate        = errors.New("env: rate must be positive")
)

// gonumSource adapts the replicate-owned RNG to the random source gonum
// distributions consume (x/exp/rand.Source). Seed is a no-op: the
// replicate seeds its RNG once at construction and the arms must never
// re-seed it.
type gonumSource struct {
	rng *rand.Rand
}

func (s gonumSource) Uint64() uint64 { return s.rng.Uint64() }
func (s gonumSource) Seed(uint64)    {}

// Arm is a single reward source. Draw samples one reward at time step t;
// the step is passed through so non-stationary arms can depend on it.
// Mean returns the true expectation, which stays hidden from policies.
//
// Implementations must be safe to Clone: a clone shares no mutable state
// with the original, so one replicate cannot observe another.
type Arm interface {
	fmt.Stringer

	// Draw samples one reward at time step t using the replicate's RNG.
	Draw(rng *rand.Rand, t int) float64

	// Mean returns the true expected reward of this arm.
	Mean() float64

	// Clone returns an independent copy of this arm.
	Clone() Arm
}

// Bernoulli is an arm paying 1 with probability p and 0 otherwise.
type Bernoulli struct {
	p float64
}

// NewBernoulli creates a Bernoulli arm with success probability p.
func NewBernoulli(p float64) (*Bernoulli, error) {
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidProbability, p)
	}
	return &Bernoulli{p: p}, nil
}

func (a *Bernoulli) Draw(rng *rand.Rand, t int) float64 {
	return distuv.Bernoulli{P: a.p, Src: gonumSource{rng}}.Rand()
}

func (a *Bernoulli) Mean() float64 {
	return a.p
}

func (a *Bernoulli) Clone() Arm {
	clone := *a
	return &clone
}

func (a *Bernoulli) String() string {
	return fmt.Sprintf("B(%g)", a.p)
}

// Gaussian is an arm drawing from a normal distribution with the given
// mean and standard deviation, truncated to [0, 1] like the rewards of
// the other bounded arms.
type Gaussian struct {
	mu    float64
	sigma float64
}

// NewGaussian creates a Gaussian arm with mean mu and standard deviation
// sigma.
func NewGaussian(mu, sigma float64) (*Gaussian, error) {
	if sigma <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidSigma, sigma)
	}
	return &Gaussian{mu: mu, sigma: sigma}, nil
}

func (a *Gaussian) Draw(rng *rand.Rand, t int) float64 {
	x := distuv.Normal{Mu: a.mu, Sigma: a.sigma, Src: gonumSource{rng}}.Rand()
	return min(1, max(0, x))
}

func (a *Gaussian) Mean() float64 {
	return a.mu
}

func (a *Gaussian) Clone() Arm {
	clone := *a
	return &clone
}

func (a *Gaussian) String() string {
	return fmt.Sprintf("N(%g, %g)", a.mu, a.sigma)
}

// Exponential is an arm drawing from an exponential distribution with
// the given rate. Rewards are unbounded above; BESA handles that without
// normalization, index policies may need rescaling.
type Exponential struct {
	rate float64
}

// NewExponential creates an exponential arm with the given rate (so the
// mean reward is 1/rate).
func NewExponential(rate float64) (*Exponential, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidRate, rate)
	}
	return &Exponential{rate: rate}, nil
}

func (a *Exponential) Draw(rng *rand.Rand, t int) float64 {
	return distuv.Exponential{Rate: a.rate, Src: gonumSource{rng}}.Rand()
}

func (a *Exponential) Mean() float64 {
	return 1 / a.rate
}

func (a *Exponential) Clone() Arm {
	clone := *a
	return &clone
}

func (a *Exponential) String() string {
	return fmt.Sprintf("Exp(%g)", a.rate)
}
