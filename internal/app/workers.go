package app

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yourusername/albumgrab-go/internal/domain"
	"github.com/yourusername/albumgrab-go/internal/pool"
)

// windowSize is how many recent outcomes inform worker adjustment.
const windowSize = 16

// processFunc runs one resource to completion. A returned error is fatal
// for the whole run; per-resource failures are folded into the Outcome.
type processFunc func(ctx context.Context, ref domain.ResourceReference) (pool.Outcome, error)

// dispatchConcurrent fans pending references out to a worker pool whose
// size follows the controller's advice. Workers are added or retired only
// between transfers, never mid-flight: growth spawns a fresh worker, and a
// shrink closes one worker's quit channel, which it checks before taking
// the next reference.
func (o *Orchestrator) dispatchConcurrent(ctx context.Context, refs []domain.ResourceReference, process processFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workCh := make(chan domain.ResourceReference)
	results := make(chan pool.Outcome)

	var (
		wg        sync.WaitGroup
		fatalOnce sync.Once
		fatal     error
	)
	abort := func(err error) {
		fatalOnce.Do(func() {
			fatal = err
			cancel()
		})
	}

	var quits []chan struct{}
	spawn := func() {
		quit := make(chan struct{})
		quits = append(quits, quit)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-quit:
					return
				case ref, ok := <-workCh:
					if !ok {
						return
					}
					out, err := process(ctx, ref)
					if err != nil {
						abort(err)
						return
					}
					select {
					case results <- out:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}
	retire := func() {
		if len(quits) == 0 {
			return
		}
		last := quits[len(quits)-1]
		quits = quits[:len(quits)-1]
		close(last)
	}

	ctrl := pool.NewController(o.cfg.Download.MinWorkers, o.cfg.Download.MaxWorkers)
	window := pool.NewWindow(windowSize)
	for i := 0; i < ctrl.Current(); i++ {
		spawn()
	}

	go func() {
		defer close(workCh)
		for _, ref := range refs {
			select {
			case workCh <- ref:
			case <-ctx.Done():
				return
			}
		}
	}()

	workersDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(workersDone)
	}()

	adjustEvery := o.cfg.Download.AdjustEvery
	finished := 0
	for {
		select {
		case out := <-results:
			window.Add(out)
			finished++
			if adjustEvery > 0 && finished%adjustEvery == 0 {
				sample := window.Snapshot()
				if o.Headroom != nil {
					sample.FreeMemFrac, sample.CPULoad = o.Headroom()
				}
				prev := ctrl.Current()
				target := ctrl.Target(sample)
				switch {
				case target > prev:
					spawn()
				case target < prev:
					retire()
				}
				if target != prev {
					o.logger.Info("adjusted worker count",
						zap.Int("from", prev),
						zap.Int("to", target),
						zap.Float64("error_rate", sample.ErrorRate),
						zap.Int("timeouts", sample.Timeouts),
						zap.Float64("throughput", sample.Throughput))
				}
			}
		case <-workersDone:
			if fatal != nil {
				return fatal
			}
			return ctx.Err()
		}
	}
}
