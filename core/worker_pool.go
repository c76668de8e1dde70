package core

import (
	"runtime"

	"github.com/rs/zerolog/log"
)

// DefaultBatchSize reports the concurrency level used by components (such
// as the LSH parallel training driver) that have no caller-supplied
// batch size. It mirrors runtime.GOMAXPROCS, logged once at package init
// the way the rest of this package surfaces ambient machine facts.
var DefaultBatchSize = runtime.GOMAXPROCS(0)

func init() {
	if DefaultBatchSize < 1 {
		DefaultBatchSize = 1
	}
	log.Debug().Msgf("Default worker batch size: %d (GOMAXPROCS)", DefaultBatchSize)
}
