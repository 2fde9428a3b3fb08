package sim

import (
	"hash/fnv"
	"math/rand"
)

// Stream names handed to PartitionedRNG.ForSubsystem.
const (
	// SubsystemArrivals drives the per-tick arrival counts.
	SubsystemArrivals = "arrivals"
	// SubsystemService drives the service duration of each new customer.
	SubsystemService = "service"
)

// PartitionedRNG hands out one *rand.Rand per named stream, all derived from
// the run seed. Arrivals and service times never share a source: how many
// customers a tick draws does not shift the service times of later customers.
//
// The arrival stream is seeded with the run seed itself, so the seed logged by
// a run is enough to replay its arrival counts. Any other stream is seeded
// with the run seed XOR the FNV-1a hash of its name.
//
// Owned by the bank controller; not safe for concurrent use.
type PartitionedRNG struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates the streams of a run seeded with seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{seed: seed, streams: make(map[string]*rand.Rand)}
}

// ForSubsystem returns the stream called name, creating it on first use.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(streamSeed(p.seed, name)))
	p.streams[name] = rng
	return rng
}

// Seed returns the run seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

func streamSeed(seed int64, name string) int64 {
	if name == SubsystemArrivals {
		return seed
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}
