package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"

	"github.com/bitproj/lshvec/ann"
	"github.com/bitproj/lshvec/core"
	"github.com/bitproj/lshvec/hnsw"
	"github.com/bitproj/lshvec/lsh"
	"github.com/bitproj/lshvec/pqivf"
	"github.com/bitproj/lshvec/probing"
	"github.com/bitproj/lshvec/rpt"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// Execute dispatches the single "bench" subcommand this driver ships: it
// builds the index chosen by -backend (by default an LSH index, trained and
// then filled by hashing the base dataset; or one of the hnsw, pqivf, rpt
// backends, bulk-loaded with it) and reports recall@k over a query set
// against a ground-truth file, all read from a dataset
// directory in the fvecs/ivecs layout the standard ANN-benchmark corpora
// use (base.fvecs, query.fvecs, groundtruth.ivecs).
func Execute(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: lshvec bench -dir <dataset-dir> [flags]")
	}

	switch args[0] {
	case "bench":
		return runBench(args[1:])
	default:
		return fmt.Errorf("unknown subcommand %q (expected \"bench\")", args[0])
	}
}

func runBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	dir := fs.String("dir", "", "dataset directory containing base.fvecs, query.fvecs, groundtruth.ivecs")
	backend := fs.String("backend", "lsh", "index backend: lsh, hnsw, pqivf, or rpt")
	l := fs.Uint("L", 8, "number of hash tables (lsh backend)")
	n := fs.Uint("N", 16, "bits per hash code (lsh backend)")
	s := fs.Uint("S", 4000, "training sample size (lsh backend)")
	m := fs.Uint("M", 1024, "hash-table modulus (lsh backend)")
	iters := fs.Uint("I", 3, "ITQ iteration budget (lsh backend)")
	k := fs.Int("k", 10, "neighbors per query for recall@k")
	candidates := fs.Int("candidates", 100, "candidate quota per query (lsh backend)")
	batchSize := fs.Int("batch", 0, "training batch size (0 = GOMAXPROCS, lsh backend)")
	seed := fs.Int64("seed", 0, "training seed (0 = ambient LSHVEC_SEED / time, lsh backend)")
	savePath := fs.String("save", "", "optional path to persist the trained index")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dir == "" {
		return fmt.Errorf("-dir is required")
	}

	base, err := ann.ReadFvecs(filepath.Join(*dir, "base.fvecs"))
	if err != nil {
		return err
	}
	queries, err := ann.ReadFvecs(filepath.Join(*dir, "query.fvecs"))
	if err != nil {
		return err
	}
	groundTruth, err := ann.ReadIvecs(filepath.Join(*dir, "groundtruth.ivecs"))
	if err != nil {
		return err
	}

	switch *backend {
	case "lsh":
		return runBenchLSH(base, queries, groundTruth, *l, *n, *s, *m, *iters, *k, *candidates, *batchSize, *seed, *savePath)
	case "hnsw", "pqivf", "rpt":
		return runBenchCoreIndex(*backend, base, queries, groundTruth, *k, *savePath)
	default:
		return fmt.Errorf("unknown backend %q (expected lsh, hnsw, pqivf, or rpt)", *backend)
	}
}

// runBenchLSH trains and evaluates the sampling/ITQ/probing pipeline this
// module implements natively.
func runBenchLSH(base, queries [][]float32, groundTruth [][]int32, l, n, s, m, iters uint, k, candidates, batchSize int, seed int64, savePath string) error {
	dataset, err := lsh.NewFloatMatrix(base)
	if err != nil {
		return err
	}

	trainSeed := seed
	if trainSeed == 0 {
		trainSeed = core.GetSeed()
	}

	params := lsh.Parameter{
		M: uint32(m),
		L: uint32(l),
		D: uint32(dataset.Dim()),
		N: uint32(n),
		S: uint32(s),
		I: uint32(iters),
	}

	index := lsh.NewIndex()
	if err := index.Reset(params); err != nil {
		return err
	}
	log.Info().Uint("L", l).Uint("N", n).Uint("S", s).Msg("training LSH index")
	if err := index.TrainAll(dataset, batchSize, trainSeed); err != nil {
		return err
	}

	ctx := context.Background()
	if err := index.SetMeanAndStd(ctx, dataset); err != nil {
		return err
	}

	bar := progressbar.Default(int64(dataset.Rows()), "hashing dataset")
	if err := index.Hash(ctx, dataset, tickerFunc(func() { _ = bar.Add(1) })); err != nil {
		return err
	}

	if savePath != "" {
		if err := index.Save(savePath); err != nil {
			return err
		}
		log.Info().Str("path", savePath).Msg("saved index")
	}

	results := make([][]int, len(queries))
	var totalCandidates float64
	distFn := core.Distances["euclidean"]
	for qi, q := range queries {
		scanner := probing.NewHeapScanner(k, probing.NewDistanceMetric(q, dataset.Row, distFn))
		prober := probing.NewRoundRobinProber(index, int(l), q, scanner)
		if err := index.TopK(prober, candidates); err != nil {
			return err
		}
		totalCandidates += float64(prober.ItemsProbed())

		neighbors := scanner.Results()
		row := make([]int, len(neighbors))
		for i, nb := range neighbors {
			row[i] = nb.Row
		}
		results[qi] = row
	}

	report := ann.Report{
		Queries:       len(queries),
		K:             k,
		Recall:        ann.RecallAtK(groundTruth, results, k),
		AvgCandidates: totalCandidates / float64(len(queries)),
	}
	fmt.Println(report.String())
	return nil
}

// runBenchCoreIndex evaluates one of the sibling core.Index backends carried
// over from the library this module grew from — HNSW graph search, product
// quantization over an inverted file, or a random-projection tree — so
// callers can compare them against the native LSH pipeline through the same
// bulk-load, search, and recall@k reporting path.
func runBenchCoreIndex(backend string, base, queries [][]float32, groundTruth [][]int32, k int, savePath string) error {
	if len(base) == 0 {
		return fmt.Errorf("base dataset is empty")
	}
	dim := len(base[0])

	var index core.Index
	switch backend {
	case "hnsw":
		index = hnsw.NewHNSW(dim, 16, 200, core.Distances["euclidean"], "euclidean")
	case "pqivf":
		coarseK := 100
		if coarseK > len(base) {
			coarseK = len(base)
		}
		index = pqivf.NewPQIVFIndex(dim, coarseK, 8, 256, 25)
	case "rpt":
		index = rpt.NewRPTIndex(dim, 32, 5, 1024, 0.1)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}

	vectors := make(map[int][]float32, len(base))
	for i, v := range base {
		vectors[i] = v
	}
	log.Info().Str("backend", backend).Int("count", len(vectors)).Msg("bulk-loading index")
	if err := index.BulkAdd(vectors); err != nil {
		return err
	}

	if savePath != "" {
		if err := index.Save(savePath); err != nil {
			return err
		}
		log.Info().Str("path", savePath).Msg("saved index")
	}

	results := make([][]int, len(queries))
	for qi, q := range queries {
		neighbors, err := index.Search(q, k)
		if err != nil {
			return err
		}
		row := make([]int, len(neighbors))
		for i, nb := range neighbors {
			row[i] = nb.ID
		}
		results[qi] = row
	}

	report := ann.Report{
		Queries:       len(queries),
		K:             k,
		Recall:        ann.RecallAtK(groundTruth, results, k),
		AvgCandidates: float64(index.Stats().Count),
	}
	fmt.Println(report.String())
	return nil
}

// tickerFunc adapts a plain func() into a lsh.ProgressObserver.
type tickerFunc func()

func (t tickerFunc) Tick() { t() }
