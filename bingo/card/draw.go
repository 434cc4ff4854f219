package card

import "math/rand"

// Draw picks one number uniformly from 1..75 minus called. ok is false once
// the domain is exhausted.
func Draw(rng *rand.Rand, called []int) (n int, ok bool) {
	taken := make(map[int]bool, len(called))
	for _, c := range called {
		taken[c] = true
	}
	remaining := make([]int, 0, MaxNumber-len(taken))
	for i := 1; i <= MaxNumber; i++ {
		if !taken[i] {
			remaining = append(remaining, i)
		}
	}
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[rng.Intn(len(remaining))], true
}
