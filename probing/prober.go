package probing

import "github.com/bitproj/lshvec/core"

// Hasher is the subset of lsh.Hasher the round-robin prober needs: the
// bucket id a query vector falls into for a given table. Declared locally
// so this package does not import lsh just for this one method.
type Hasher interface {
	BucketID(table int, v []float32) uint64
}

// RoundRobinProber visits the query's own bucket in each of the L tables,
// once per table, in order 0..L-1, then reports exhaustion. It is the
// simplest possible prober: no multi-probe perturbation, just the single
// bucket each table's hash assigns the query to.
type RoundRobinProber struct {
	buckets []uint64 // the query's bucket id in each table
	next    int
	scanner *HeapScanner
	probed  int
}

// NewRoundRobinProber seeds a prober for query against hasher's L tables,
// forwarding every visited row to scanner.
func NewRoundRobinProber(hasher Hasher, l int, query []float32, scanner *HeapScanner) *RoundRobinProber {
	buckets := make([]uint64, l)
	for t := 0; t < l; t++ {
		buckets[t] = hasher.BucketID(t, query)
	}
	return &RoundRobinProber{buckets: buckets, scanner: scanner}
}

func (p *RoundRobinProber) HasNextBucket() bool {
	return p.next < len(p.buckets)
}

func (p *RoundRobinProber) NextBucket() (int, uint64) {
	t := p.next
	bid := p.buckets[t]
	p.next++
	return t, bid
}

func (p *RoundRobinProber) Visit(row int) {
	p.probed++
	p.scanner.Offer(row)
}

func (p *RoundRobinProber) ItemsProbed() int {
	return p.probed
}

// NewDistanceMetric adapts a core.DistanceFunc plus a row lookup into the
// func(row int) float64 shape HeapScanner expects.
func NewDistanceMetric(query []float32, rowVector func(int) []float32, dist core.DistanceFunc) func(int) float64 {
	return func(row int) float64 {
		return dist(query, rowVector(row))
	}
}
