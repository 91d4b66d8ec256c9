package predict

import (
	"context"
	"math/rand/v2"
	"runtime"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// minSamplesSplit is the smallest node that may be split.
const minSamplesSplit = 2

// Forest is a bagged ensemble of regression trees. Its prediction is the
// mean of its trees' predictions.
type Forest struct {
	Trees []Tree
}

// Predict returns the unrounded ensemble prediction for one vector.
func (f *Forest) Predict(x []float64) float64 {
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees))
}

// fitForest grows estimators trees, each on a bootstrap sample of the rows.
// Tree seeds are drawn from seed before fitting so the result does not depend
// on workers.
func fitForest(ctx context.Context, x [][]float64, y []float64, estimators int, seed uint64, workers int) (*Forest, error) {
	if len(y) == 0 {
		return nil, eris.New("predict: no training rows")
	}
	if estimators < 1 {
		return nil, eris.Errorf("predict: invalid estimator count %d", estimators)
	}
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	master := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seeds := make([]uint64, estimators)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]Tree, estimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
			sample := make([]int, len(y))
			for k := range sample {
				sample[k] = rng.IntN(len(y))
			}
			trees[i] = buildTree(x, y, sample, minSamplesSplit)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "predict: fit forest")
	}
	return &Forest{Trees: trees}, nil
}
