// Package mathx holds stateless hashing used where parallel tasks need random
// numbers without sharing a generator.
package mathx

// Hash32 mixes a 32-bit input into a well-distributed 32-bit output.
func Hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// Hash3 returns a stable hash of seed and three integer keys.
func Hash3(seed, a, b, c uint32) uint32 {
	h := seed
	h ^= a * 0x9e3779b1
	h = Hash32(h)
	h ^= b * 0x85ebca6b
	h = Hash32(h)
	h ^= c * 0xc2b2ae35
	return Hash32(h)
}

// Unit maps a hash to [0,1).
func Unit(h uint32) float32 {
	return float32(h>>8) / (1 << 24)
}
