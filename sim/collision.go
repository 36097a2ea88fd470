package sim

import (
	"math/rand/v2"

	"github.com/alextanhongpin/bandit/env"
	"github.com/alextanhongpin/bandit/policy"
)

// CollisionModel decides, for one time step, which agents receive a
// reward and which experience a collision, given every agent's
// simultaneous choice.
//
// A model must populate rewards[i] (0 for a losing player),
// pulls[i][arm] and collisions[arm] (count of agents colliding on that
// arm), and must call exactly one of GetReward or HandleCollision on
// every player. The driver never calls them itself in the multi-agent
// case.
type CollisionModel func(t int, arms *env.MAB, players []policy.Policy, choices []int, rewards []float64, pulls [][]int, collisions []int, rng *rand.Rand)

// DefaultCollisionModel is the model used when none is configured.
var DefaultCollisionModel CollisionModel = OnlyUniqUserGetsReward

// NoCollision lets every player receive the drawn reward even when
// several chose the same arm. Useful as a baseline and for single-agent
// sanity checks.
func NoCollision(t int, arms *env.MAB, players []policy.Policy, choices []int, rewards []float64, pulls [][]int, collisions []int, rng *rand.Rand) {
	for i, player := range players {
		arm := choices[i]
		rewards[i] = arms.Arm(arm).Draw(rng, t)
		player.GetReward(arm, rewards[i])
		pulls[i][arm]++
	}
}

// OnlyUniqUserGetsReward rewards only the players that chose an arm
// nobody else chose; every player on a contested arm collides and
// receives nothing.
func OnlyUniqUserGetsReward(t int, arms *env.MAB, players []policy.Policy, choices []int, rewards []float64, pulls [][]int, collisions []int, rng *rand.Rand) {
	occupancy := make([]int, arms.NbArms())
	for _, arm := range choices {
		occupancy[arm]++
	}
	for i, player := range players {
		arm := choices[i]
		if occupancy[arm] == 1 {
			rewards[i] = arms.Arm(arm).Draw(rng, t)
			player.GetReward(arm, rewards[i])
			pulls[i][arm]++
		} else {
			collisions[arm]++
			player.HandleCollision(arm)
		}
	}
}

// RandomWinnerGetsReward picks one player uniformly at random among the
// colliders of each contested arm, gives it the drawn reward, and counts
// a collision for every loser.
func RandomWinnerGetsReward(t int, arms *env.MAB, players []policy.Policy, choices []int, rewards []float64, pulls [][]int, collisions []int, rng *rand.Rand) {
	contenders := make([][]int, arms.NbArms())
	for i, arm := range choices {
		contenders[arm] = append(contenders[arm], i)
	}
	for arm, users := range contenders {
		if len(users) == 0 {
			continue
		}
		winner := users[0]
		if len(users) > 1 {
			winner = users[rng.IntN(len(users))]
		}
		for _, i := range users {
			if i == winner {
				rewards[i] = arms.Arm(arm).Draw(rng, t)
				players[i].GetReward(arm, rewards[i])
				pulls[i][arm]++
			} else {
				collisions[arm]++
				players[i].HandleCollision(arm)
			}
		}
	}
}
