package rgf

import (
	"math/rand/v2"
)

// Bagger draws row subsets without replacement every BaggingFreq rounds and
// reuses the previous subset in between.
type Bagger struct {
	numData  int
	fraction float64
	freq     int
	rng      *rand.Rand
	current  []int
}

// NewBagger creates a sampler. A fraction of 1 or a non-positive freq
// disables sampling and Indices always returns nil.
func NewBagger(numData int, fraction float64, freq int, seed int64) *Bagger {
	return &Bagger{
		numData:  numData,
		fraction: fraction,
		freq:     freq,
		rng:      rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Enabled reports whether rows are subsampled.
func (b *Bagger) Enabled() bool {
	return b.freq > 0 && b.fraction > 0 && b.fraction < 1
}

// Indices returns the sorted rows used for the given round, nil meaning all.
func (b *Bagger) Indices(round int) []int {
	if !b.Enabled() {
		return nil
	}
	if b.current != nil && round%b.freq != 0 {
		return b.current
	}

	numSample := int(float64(b.numData) * b.fraction)
	if numSample < 1 {
		numSample = 1
	}

	// selection sampling keeps the result ordered
	picked := make([]int, 0, numSample)
	need := numSample
	for i := 0; i < b.numData && need > 0; i++ {
		if b.rng.IntN(b.numData-i) < need {
			picked = append(picked, i)
			need--
		}
	}
	b.current = picked
	return picked
}
