package core

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// GetSeed returns a seed value for random number generation, read from the
// LSHVEC_SEED environment variable when present and parseable, falling back
// to the current wall-clock time otherwise.
func GetSeed() int64 {
	seedStr := os.Getenv("LSHVEC_SEED")
	if seedStr != "" {
		if seed, err := strconv.ParseInt(seedStr, 10, 64); err == nil {
			log.Info().Msgf("Using seed from LSHVEC_SEED value: %d", seed)
			return seed
		}
		log.Warn().Msgf("Failed to parse LSHVEC_SEED value: %s", seedStr)
	}

	seed := time.Now().UnixNano()
	log.Info().Msgf("Using current time as seed: %d", seed)
	return seed
}

// GetWorkerSeed mixes the ambient seed with a worker identifier so that
// concurrent workers seeded from the same base (e.g. sibling training
// goroutines within one batch) diverge from each other. The mix is a
// simple splitmix-style constant multiply; it need not be cryptographic,
// only well distributed.
func GetWorkerSeed(base int64, workerID int) int64 {
	mixed := uint64(base) ^ (uint64(workerID)+1)*0x9E3779B97F4A7C15
	mixed ^= mixed >> 30
	mixed *= 0xBF58476D1CE4E5B9
	mixed ^= mixed >> 27
	return int64(mixed)
}
