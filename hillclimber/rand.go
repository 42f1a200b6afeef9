package hillclimber

import "math/rand"

// countingSource is a seeded rand.Source that counts how far it has advanced,
// so a checkpoint can put a resumed search back at the same point of the
// stream.
type countingSource struct {
	seed  int64
	src   rand.Source64
	draws uint64
}

func newCountingSource(seed int64) *countingSource {
	return &countingSource{seed: seed, src: rand.NewSource(seed).(rand.Source64)}
}

func (c *countingSource) Int63() int64 {
	c.draws++
	return c.src.Int63()
}

func (c *countingSource) Uint64() uint64 {
	c.draws++
	return c.src.Uint64()
}

func (c *countingSource) Seed(seed int64) {
	c.seed, c.draws = seed, 0
	c.src.Seed(seed)
}

// skip advances the stream by n values.
func (c *countingSource) skip(n uint64) {
	for c.draws < n {
		c.Int63()
	}
}
