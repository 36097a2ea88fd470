package env

import (
	"math"
	"sort"
)

// klEps keeps KL arguments away from 0 and 1 where the divergence blows
// up.
const klEps = 1e-15

// KLBern computes the Kullback-Leibler divergence between two Bernoulli
// distributions of means p and q.
func KLBern(p, q float64) float64 {
	p = min(1-klEps, max(klEps, p))
	q = min(1-klEps, max(klEps, q))
	return p*math.Log(p/q) + (1-p)*math.Log((1-p)/(1-q))
}

// LowerBoundMultiplayers computes the two centralized regret lower
// bounds for nbPlayers agents playing this environment: the
// Kaufmann-Besson bound and the Anandkumar et al. bound. Both are the
// constants multiplying log(t) in the asymptotic regime.
//
// With nbPlayers >= NbArms every arm is one of the best: both bounds are
// zero.
func (m *MAB) LowerBoundMultiplayers(nbPlayers int) (lowerBound, anandkumarLowerBound float64) {
	means := m.Means()
	sort.Float64s(means)
	if nbPlayers >= len(means) {
		return 0, 0
	}
	bestMeans := means[len(means)-nbPlayers:]
	worstMeans := means[:len(means)-nbPlayers]
	worstOfBest := bestMeans[0]

	for _, mu := range worstMeans {
		lowerBound += (worstOfBest - mu) / KLBern(mu, worstOfBest)
	}
	lowerBound *= float64(nbPlayers)

	for _, best := range bestMeans {
		for _, mu := range worstMeans {
			anandkumarLowerBound += (worstOfBest - mu) / KLBern(mu, best)
		}
	}
	return lowerBound, anandkumarLowerBound
}
