package lsh

import (
	"math/rand"
	"sync"

	"github.com/bitproj/lshvec/core"
	"github.com/rs/zerolog/log"
)

// TrainAll runs TrainTable for every one of p.L tables, in sequential
// batches of up to batchSize concurrent workers. Each worker owns a
// distinct basis slot and only reads the dataset, so no synchronization is
// needed on the output slice itself.
//
// If batchSize <= 0, core.DefaultBatchSize is used.
//
// If any worker fails, TrainAll still joins every sibling in that batch
// before returning the first error (by table index); no further batches
// are started, and the returned bases slice is nil.
func TrainAll(data Dataset, p Parameter, batchSize int, seed int64) ([][][]float32, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = core.DefaultBatchSize
	}

	l := int(p.L)
	bases := make([][][]float32, l)
	errs := make([]error, l)

	for start := 0; start < l; start += batchSize {
		end := start + batchSize
		if end > l {
			end = l
		}

		var wg sync.WaitGroup
		for k := start; k < end; k++ {
			wg.Add(1)
			go func(table int) {
				defer wg.Done()
				workerSeed := core.GetWorkerSeed(seed, table)
				rng := rand.New(rand.NewSource(workerSeed))
				basis, err := TrainTable(data, p, rng)
				if err != nil {
					errs[table] = err
					return
				}
				bases[table] = basis
			}(k)
		}
		wg.Wait()

		for k := start; k < end; k++ {
			if errs[k] != nil {
				log.Error().Err(errs[k]).Int("table", k).Msg("table training failed")
				return nil, errs[k]
			}
		}
	}

	return bases, nil
}
