package emulated

import (
	"math/rand"
)

// Corruptor returns the value that is actually stored when value is written
type Corruptor func(value uint8) uint8

const registerBits = 8

// FlipWeights is the probability of flipping 0, 1, 2, 3 or 4 bits on a write
var FlipWeights = [...]float64{0.368, 0.368, 0.184, 0.069, 0.011}

func drawFlips(rng *rand.Rand) int {
	total := 0.0
	for _, w := range FlipWeights {
		total += w
	}

	r := rng.Float64() * total
	for n, w := range FlipWeights {
		if r < w {
			return n
		}
		r -= w
	}
	return len(FlipWeights) - 1
}

// flipMask returns a uniformly chosen mask with exactly n bits set
func flipMask(rng *rand.Rand, n int) uint8 {
	if n > registerBits {
		n = registerBits
	}

	var mask uint8
	for _, bit := range rng.Perm(registerBits)[:n] {
		mask |= 1 << uint(bit)
	}
	return mask
}

// RandomBitFlips flips a random number of bits, drawn from FlipWeights, in every value.
// The returned function uses rng without locking.
func RandomBitFlips(rng *rand.Rand) Corruptor {
	return func(value uint8) uint8 {
		return value ^ flipMask(rng, drawFlips(rng))
	}
}

// FlipMask always applies the same mask, useful for reproducible tests
func FlipMask(mask uint8) Corruptor {
	return func(value uint8) uint8 {
		return value ^ mask
	}
}

// Sequence applies the given corruptors in order, one per write, and stops corrupting when
// they are exhausted
func Sequence(corruptors ...Corruptor) Corruptor {
	i := 0
	return func(value uint8) uint8 {
		if i >= len(corruptors) {
			return value
		}
		c := corruptors[i]
		i++
		return c(value)
	}
}
