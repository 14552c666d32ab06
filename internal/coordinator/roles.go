package coordinator

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"DistReduce/internal/chunk"
	"DistReduce/internal/comm"
	"DistReduce/internal/config"
	"DistReduce/internal/logger"
	"DistReduce/internal/mapreduce"
	"DistReduce/internal/types"
)

// CoordinatorRole plans the job on rank 0 and hands out the work.
type CoordinatorRole struct {
	cfg    config.Config
	comm   comm.Communicator
	logger *logger.Logger

	ranges []types.ByteRange
}

func (c *CoordinatorRole) Role() types.Role { return types.RoleCoordinator }

// setup plans the ranges, truncates the output and tells every worker the
// job id. Planning runs first so a bad input fails before anyone is told.
func (c *CoordinatorRole) setup(ctx context.Context) (comm.JobInfo, error) {
	ranges, err := c.plan()
	if err != nil {
		return comm.JobInfo{}, err
	}
	c.ranges = ranges

	if err := mapreduce.ResetSharedOutput(c.cfg.Output); err != nil {
		return comm.JobInfo{}, err
	}

	info := comm.JobInfo{
		ID:       uuid.New().String(),
		Input:    c.cfg.Input,
		Output:   c.cfg.Output,
		Reducers: c.cfg.Reducers,
	}
	for peer := 1; peer < c.comm.Size(); peer++ {
		if err := c.comm.Send(ctx, peer, comm.Message{Kind: comm.KindJob, Job: info}); err != nil {
			return comm.JobInfo{}, fmt.Errorf("failed to announce job to rank %d: %w", peer, err)
		}
	}
	return info, nil
}

func (c *CoordinatorRole) plan() ([]types.ByteRange, error) {
	f, err := os.Open(c.cfg.Input)
	if err != nil {
		return nil, types.IOError("plan", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, types.IOError("plan", err)
	}

	ranges, err := chunk.Plan(f, fi.Size(), c.cfg.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("failed to plan %s: %w", c.cfg.Input, err)
	}
	c.logger.Info("Input planned: file=%s size=%d block=%d ranges=%d", c.cfg.Input, fi.Size(), c.cfg.BlockSize, len(ranges))
	return ranges, nil
}

// mapPhase sends each worker its ranges followed by the no-work signal.
// The coordinator maps nothing itself.
func (c *CoordinatorRole) mapPhase(ctx context.Context, s *session) (int, error) {
	assigned := chunk.Assign(c.ranges, s.world)
	for peer := 1; peer < s.world; peer++ {
		for _, r := range assigned[peer] {
			if err := c.comm.Send(ctx, peer, comm.Message{Kind: comm.KindRange, Range: r}); err != nil {
				return 0, fmt.Errorf("failed to send range %s to rank %d: %w", r, peer, err)
			}
		}
		if err := c.comm.Send(ctx, peer, comm.Message{Kind: comm.KindNoWork}); err != nil {
			return 0, fmt.Errorf("failed to send no-work to rank %d: %w", peer, err)
		}
		c.logger.Debug("Ranges sent: peer=%d count=%d", peer, len(assigned[peer]))
	}
	c.logger.Info("Ranges distributed: ranges=%d workers=%d", len(c.ranges), s.world-1)
	return 0, nil
}

// finish removes the job's scratch namespace once every rank is done with it.
func (c *CoordinatorRole) finish(s *session) error {
	return s.store.Destroy()
}

// WorkerRole maps the ranges rank 0 sends it.
type WorkerRole struct {
	cfg    config.Config
	comm   comm.Communicator
	mapper mapreduce.Mapper
	logger *logger.Logger
}

func (w *WorkerRole) Role() types.Role { return types.RoleWorker }

func (w *WorkerRole) setup(ctx context.Context) (comm.JobInfo, error) {
	msg, err := comm.Expect(ctx, w.comm, types.CoordinatorRank, comm.KindJob)
	if err != nil {
		return comm.JobInfo{}, fmt.Errorf("failed to receive job: %w", err)
	}
	info := msg.Job
	if info.ID == "" || info.Input == "" || info.Output == "" || info.Reducers < 1 {
		return comm.JobInfo{}, types.ProtocolError("setup", "incomplete job announcement %+v", info)
	}
	return info, nil
}

func (w *WorkerRole) mapPhase(ctx context.Context, s *session) (int, error) {
	mw := mapreduce.NewMapWorker(s.rank, s.info.Input, w.mapper, s.store, s.journal, w.logger)
	return mw.Run(ctx, w.comm)
}

func (w *WorkerRole) finish(*session) error { return nil }
