package env

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
)

// ErrNoArms is returned when a MAB is created without any arm.
var ErrNoArms = errors.New("env: a MAB needs at least one arm")

// MAB is an ordered, immutable collection of arms. It is immutable for
// the duration of one replicate; replicates that need isolation clone it
// first.
type MAB struct {
	arms []Arm
}

// NewMAB creates a multi-armed bandit environment over the given arms.
func NewMAB(arms ...Arm) (*MAB, error) {
	if len(arms) == 0 {
		return nil, ErrNoArms
	}
	return &MAB{arms: arms}, nil
}

// NbArms returns the number of arms.
func (m *MAB) NbArms() int {
	return len(m.arms)
}

// Arm returns the arm at index i.
func (m *MAB) Arm(i int) Arm {
	return m.arms[i]
}

// Means returns the true mean of every arm, in arm order.
func (m *MAB) Means() []float64 {
	means := make([]float64, len(m.arms))
	for i, arm := range m.arms {
		means[i] = arm.Mean()
	}
	return means
}

// MaxArm returns the largest true mean.
func (m *MAB) MaxArm() float64 {
	best := m.arms[0].Mean()
	for _, arm := range m.arms[1:] {
		best = max(best, arm.Mean())
	}
	return best
}

// BestArms returns the indices of every arm whose mean is within tol of
// the maximum. Ties under floating-point noise all count as best.
func (m *MAB) BestArms(tol float64) []int {
	best := m.MaxArm()
	var idx []int
	for i, arm := range m.arms {
		if scalar.EqualWithinAbs(arm.Mean(), best, tol) {
			idx = append(idx, i)
		}
	}
	return idx
}

// Clone returns a deep copy of the environment for replicate isolation.
func (m *MAB) Clone() *MAB {
	arms := make([]Arm, len(m.arms))
	for i, arm := range m.arms {
		arms[i] = arm.Clone()
	}
	return &MAB{arms: arms}
}

func (m *MAB) String() string {
	parts := make([]string, len(m.arms))
	for i, arm := range m.arms {
		parts[i] = arm.String()
	}
	return fmt.Sprintf("MAB[%s]", strings.Join(parts, ", "))
}
