package segment

import (
	"runtime"
	"sync"
)

// PackParallel is Pack spread over a pool of workers, each filling whole
// segment rows. If workers is 0, runtime.NumCPU() is used.
func PackParallel(hapsRef []bool, genosTarget []byte, nref, ntarget int, segs [][]int, workers int) (*Packed, error) {
	p, err := newPacked(hapsRef, genosTarget, nref, ntarget, segs)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(segs))
	if workers <= 1 {
		for s := range segs {
			p.packSegment(s, hapsRef, genosTarget)
		}
		return p, nil
	}

	items := make(chan int, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for s := range items {
				p.packSegment(s, hapsRef, genosTarget)
			}
		}()
	}

	for s := range segs {
		items <- s
	}
	close(items)
	wg.Wait()

	return p, nil
}
