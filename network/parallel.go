package network

import (
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the sweep length below which per-point work
// runs on the calling goroutine. Short sweeps do not amortize the
// goroutine fan-out.
const parallelThreshold = 16

// eachPoint runs fn for every frequency point, fanning out across a
// bounded worker pool for long sweeps. Point indices are disjoint,
// so fn may write to per-index slots of shared slices without
// locking. Errors returned by fn are collected as per-point failures
// in ascending point order; they never abort the remaining points.
func (n *Network) eachPoint(fn func(k int) error) []*PointError {
	return forEachPoint(len(n.freqs), n.freqs, fn)
}

func forEachPoint(count int, freqs []float64, fn func(k int) error) []*PointError {
	if count < parallelThreshold {
		var points []*PointError
		for k := 0; k < count; k++ {
			if err := fn(k); err != nil {
				points = append(points, &PointError{Index: k, Freq: freqs[k], Err: err})
			}
		}
		return points
	}

	var (
		mu     sync.Mutex
		points []*PointError
	)
	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k := 0; k < count; k++ {
		g.Go(func() error {
			if err := fn(k); err != nil {
				mu.Lock()
				points = append(points, &PointError{Index: k, Freq: freqs[k], Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	// Workers only record point failures, so Wait never returns an
	// error here; it is the completion barrier.
	_ = g.Wait()

	sort.Slice(points, func(i, j int) bool { return points[i].Index < points[j].Index })
	return points
}
