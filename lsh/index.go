package lsh

import (
	"context"
	"fmt"
	"math/rand"
)

// State is the index lifecycle: Empty -> (Reset) -> Configured ->
// (TrainAll) -> Trained -> (Hash) -> Populated -> (Save/query). Load
// transitions Empty -> Populated directly. There is no transition back to
// Empty short of constructing a new Index.
type State int

const (
	StateEmpty State = iota
	StateConfigured
	StateTrained
	StatePopulated
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateConfigured:
		return "configured"
	case StateTrained:
		return "trained"
	case StatePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// Prober is the sole polymorphic surface the index core depends on: an
// external policy object that orders (table, bucket) candidates and
// accumulates visited rows. It is a capability interface, not a base
// class — nothing in this package implements it.
type Prober interface {
	HasNextBucket() bool
	NextBucket() (table int, bucket uint64)
	Visit(row int)
	ItemsProbed() int
}

// ProgressObserver receives one Tick per row inserted during Hash.
type ProgressObserver interface {
	Tick()
}

// Index owns the L bucket maps of one LSH index: it supports insertion,
// per-bucket probing, prober-driven candidate enumeration, and bit-exact
// persistence. Insert and Probe are not safe for concurrent use with each
// other — callers wishing to query during insertion must externally
// serialize; concurrent Probe calls alone are safe once no insert is in
// flight. The index therefore carries no internal mutex of its own.
type Index struct {
	params Parameter
	state  State
	hasher *Hasher
	rnd    [][]uint32          // per table, length N, values in [0, M)
	tables []map[uint64][]int  // per table, bucket id -> ordered member rows
	stats  Stats
}

// NewIndex returns an empty index, ready for Reset.
func NewIndex() *Index {
	return &Index{state: StateEmpty}
}

// Reset configures the index with the given parameters, allocating L empty
// tables and random-index slots. Bases remain unallocated until TrainAll.
func (idx *Index) Reset(p Parameter) error {
	if err := p.Validate(); err != nil {
		return err
	}
	idx.params = p
	idx.tables = make([]map[uint64][]int, p.L)
	for i := range idx.tables {
		idx.tables[i] = make(map[uint64][]int)
	}
	idx.rnd = make([][]uint32, p.L)
	idx.hasher = nil
	idx.stats = Stats{}
	idx.state = StateConfigured
	return nil
}

// Params returns the configuration the index was last Reset or Load'd with.
func (idx *Index) Params() Parameter { return idx.params }

// StateOf returns the index's current lifecycle state.
func (idx *Index) StateOf() State { return idx.state }

// TrainAll trains all L tables against data using batchSize concurrent
// workers per batch (see the package-level TrainAll for the batching
// contract), then fills the per-table random-index array required by the
// persisted format (present for format compatibility; it has no effect on
// BucketID). The index must be in the Configured state.
func (idx *Index) TrainAll(data Dataset, batchSize int, seed int64) error {
	if idx.state != StateConfigured {
		return fmt.Errorf("%w: TrainAll requires state %s, got %s", ErrState, StateConfigured, idx.state)
	}

	bases, err := TrainAll(data, idx.params, batchSize, seed)
	if err != nil {
		return err
	}
	hasher, err := NewHasher(bases, int(idx.params.N), int(idx.params.D))
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	m := int(idx.params.M)
	if m <= 0 {
		m = 1
	}
	for k := range idx.rnd {
		row := make([]uint32, idx.params.N)
		for i := range row {
			row[i] = uint32(rng.Intn(m))
		}
		idx.rnd[k] = row
	}

	idx.hasher = hasher
	idx.state = StateTrained
	return nil
}

// SetMeanAndStd computes and stores the quantization statistics for table
// 0. The index must already be trained.
func (idx *Index) SetMeanAndStd(ctx context.Context, data Dataset) error {
	if idx.state != StateTrained && idx.state != StatePopulated {
		return fmt.Errorf("%w: SetMeanAndStd requires a trained index, got %s", ErrState, idx.state)
	}
	stats, err := idx.hasher.MeanAndStd(ctx, data)
	if err != nil {
		return err
	}
	idx.stats = stats
	return nil
}

// Stats returns the quantization statistics last computed by
// SetMeanAndStd. The zero value is returned if it was never called.
func (idx *Index) Stats() Stats { return idx.stats }

// Insert appends row to every table's bucket for vector v. It is not
// idempotent: inserting the same row twice appends it twice.
func (idx *Index) Insert(row int, v []float32) error {
	if idx.state != StateTrained && idx.state != StatePopulated {
		return fmt.Errorf("%w: Insert requires a trained index, got %s", ErrState, idx.state)
	}
	for k := range idx.tables {
		bid := idx.hasher.BucketID(k, v)
		idx.tables[k][bid] = append(idx.tables[k][bid], row)
	}
	idx.state = StatePopulated
	return nil
}

// Hash inserts every row of data in order, reporting progress to observer
// (which may be nil). ctx is checked once per row.
func (idx *Index) Hash(ctx context.Context, data Dataset, observer ProgressObserver) error {
	if idx.state != StateTrained && idx.state != StatePopulated {
		return fmt.Errorf("%w: Hash requires a trained index, got %s", ErrState, idx.state)
	}
	rows := data.Rows()
	for r := 0; r < rows; r++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := idx.Insert(r, data.Row(r)); err != nil {
			return err
		}
		if observer != nil {
			observer.Tick()
		}
	}
	return nil
}

// BucketID computes the bucket id table k would assign vector v, without
// inserting it. Callers building a prober over this index (e.g. seeding it
// with a query vector) use this instead of reaching into the hasher
// directly.
func (idx *Index) BucketID(k int, v []float32) uint64 {
	return idx.hasher.BucketID(k, v)
}

// Probe forwards every member of tables[t][bid], in insertion order, to
// prober.Visit, and returns the bucket size. If the bucket does not exist
// it returns 0 without invoking the prober.
func (idx *Index) Probe(t int, bid uint64, prober Prober) (int, error) {
	if t < 0 || t >= len(idx.tables) {
		return 0, fmt.Errorf("%w: table index %d out of range [0, %d)", ErrInvalidParameter, t, len(idx.tables))
	}
	members, ok := idx.tables[t][bid]
	if !ok {
		return 0, nil
	}
	for _, row := range members {
		prober.Visit(row)
	}
	return len(members), nil
}

// TopK repeatedly asks prober for its next (table, bucket) pair and probes
// it, until prober.ItemsProbed() reaches quota or prober.HasNextBucket()
// reports false. The index does not cap the number of buckets visited or
// deduplicate across them — both are the prober's (or its scanner's)
// responsibility.
func (idx *Index) TopK(prober Prober, quota int) error {
	for prober.HasNextBucket() && prober.ItemsProbed() < quota {
		t, bid := prober.NextBucket()
		if _, err := idx.Probe(t, bid, prober); err != nil {
			return err
		}
	}
	return nil
}

// TableSize returns the number of distinct buckets in table t.
func (idx *Index) TableSize(t int) (int, error) {
	if t < 0 || t >= len(idx.tables) {
		return 0, fmt.Errorf("%w: table index %d out of range [0, %d)", ErrInvalidParameter, t, len(idx.tables))
	}
	return len(idx.tables[t]), nil
}

// MaxBucketSize returns the size of the largest bucket in table t.
func (idx *Index) MaxBucketSize(t int) (int, error) {
	if t < 0 || t >= len(idx.tables) {
		return 0, fmt.Errorf("%w: table index %d out of range [0, %d)", ErrInvalidParameter, t, len(idx.tables))
	}
	max := 0
	for _, members := range idx.tables[t] {
		if len(members) > max {
			max = len(members)
		}
	}
	return max, nil
}
