package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"DistReduce/internal/comm"
	"DistReduce/internal/config"
	"DistReduce/internal/logger"
)

// RunLocal runs a job with world ranks as goroutines of this process,
// connected by an in-process network. The first rank to fail cancels the
// others.
func RunLocal(ctx context.Context, cfg config.Config, world int, lg *logger.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.ValidateWorld(0, world); err != nil {
		return err
	}
	app, err := NewApp(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	net := comm.NewNetwork(world)
	defer net.Close()

	lg.Info("Local cluster starting: world=%d input=%s reducers=%d", world, cfg.Input, cfg.Reducers)

	errs := make([]error, world)
	var wg sync.WaitGroup
	for rank := 0; rank < world; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			job := NewJob(cfg, net.Endpoint(rank), app.Mapper, app.Reducer, lg)
			if err := job.Execute(ctx); err != nil {
				errs[rank] = fmt.Errorf("rank %d: %w", rank, err)
				cancel()
			}
		}(rank)
	}
	wg.Wait()

	// ranks cancelled by another's failure only add noise
	var failed []error
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			failed = append(failed, err)
		}
	}
	if len(failed) == 0 {
		for _, err := range errs {
			if err != nil {
				failed = append(failed, err)
			}
		}
	}
	if err := errors.Join(failed...); err != nil {
		return err
	}

	lg.Info("Local cluster finished: world=%d output=%s", world, cfg.Output)
	return nil
}

