package ann

import (
	"fmt"
)

// RecallAtK computes the fraction of true nearest neighbors (from ground
// truth, truncated to k) that also appear in the returned results
// (truncated to k), averaged over all queries.
func RecallAtK(groundTruth [][]int32, results [][]int, k int) float64 {
	if len(groundTruth) == 0 {
		return 0
	}

	var total float64
	for q, truth := range groundTruth {
		if q >= len(results) {
			break
		}
		truthSet := make(map[int]bool, k)
		for i, id := range truth {
			if i >= k {
				break
			}
			truthSet[int(id)] = true
		}

		hits := 0
		got := results[q]
		for i, id := range got {
			if i >= k {
				break
			}
			if truthSet[id] {
				hits++
			}
		}

		denom := k
		if len(truthSet) < denom {
			denom = len(truthSet)
		}
		if denom > 0 {
			total += float64(hits) / float64(denom)
		}
	}
	return total / float64(len(groundTruth))
}

// Report summarizes a benchmark run for printing.
type Report struct {
	Queries       int
	K             int
	Recall        float64
	AvgCandidates float64
}

// String formats the report the way a small CLI would print it to stdout.
func (r Report) String() string {
	return fmt.Sprintf("queries=%d k=%d recall@k=%.4f avg_candidates=%.1f",
		r.Queries, r.K, r.Recall, r.AvgCandidates)
}
