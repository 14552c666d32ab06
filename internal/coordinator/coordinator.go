// Package coordinator runs a map/shuffle/reduce job on one rank. Rank 0
// plays the coordinator role and every other rank the worker role; after
// the map phase all ranks run the same shuffle and reduce steps.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"DistReduce/internal/comm"
	"DistReduce/internal/config"
	"DistReduce/internal/journal"
	"DistReduce/internal/logger"
	"DistReduce/internal/mapreduce"
	"DistReduce/internal/scratch"
	"DistReduce/internal/types"
)

// role is the part of a job that differs between rank 0 and the workers.
type role interface {
	Role() types.Role
	// setup agrees on the job parameters with the other ranks.
	setup(ctx context.Context) (comm.JobInfo, error)
	// mapPhase returns how many intermediate files this rank wrote.
	mapPhase(ctx context.Context, s *session) (int, error)
	// finish runs after every rank has passed the last barrier.
	finish(s *session) error
}

// Job executes one job on one rank.
type Job struct {
	cfg     config.Config
	comm    comm.Communicator
	mapper  mapreduce.Mapper
	reducer mapreduce.Reducer
	logger  *logger.Logger
}

func NewJob(cfg config.Config, c comm.Communicator, mapper mapreduce.Mapper, reducer mapreduce.Reducer, lg *logger.Logger) *Job {
	return &Job{
		cfg:     cfg,
		comm:    c,
		mapper:  mapper,
		reducer: reducer,
		logger:  lg.With(fmt.Sprintf("rank=%d", c.Rank())),
	}
}

// Role returns the role this rank plays.
func (j *Job) Role() types.Role {
	return types.RoleOf(j.comm.Rank())
}

func (j *Job) role() role {
	if j.Role() == types.RoleCoordinator {
		return &CoordinatorRole{cfg: j.cfg, comm: j.comm, logger: j.logger}
	}
	return &WorkerRole{cfg: j.cfg, comm: j.comm, mapper: j.mapper, logger: j.logger}
}

// session is the state one rank carries through a job.
type session struct {
	rank    int
	world   int
	info    comm.JobInfo
	store   *scratch.DiskStore
	journal *journal.Journal
	counts  types.IterationTable
}

// Execute runs the whole job on this rank and returns once every rank has
// finished reducing.
func (j *Job) Execute(ctx context.Context) (err error) {
	rank, world := j.comm.Rank(), j.comm.Size()
	if err := config.ValidateWorld(rank, world); err != nil {
		return err
	}

	r := j.role()
	start := time.Now()
	defer func() {
		if err != nil {
			j.logger.Error("Job failed: role=%s err=%v", r.Role(), err)
		}
	}()

	info, err := r.setup(ctx)
	if err != nil {
		return err
	}

	s, err := j.open(info)
	if err != nil {
		return err
	}
	defer func() {
		// a failed job keeps its journal for the sweeper
		if s.journal != nil {
			s.journal.Close()
		}
	}()

	j.logger.Info("Job started: job_id=%s role=%s world=%d reducers=%d", info.ID, r.Role(), world, info.Reducers)

	count, err := r.mapPhase(ctx, s)
	if err != nil {
		return fmt.Errorf("failed to map: %w", err)
	}
	if err := j.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("failed to reach map barrier: %w", err)
	}

	if err := j.exchangeCounts(ctx, s, count); err != nil {
		return err
	}

	partitions := types.Partitions(rank, world, info.Reducers)
	if err := j.shuffle(s, partitions); err != nil {
		return err
	}
	if err := j.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("failed to reach shuffle barrier: %w", err)
	}

	if err := j.removeMapOutput(s); err != nil {
		return err
	}
	if err := j.reduce(s, partitions); err != nil {
		return err
	}
	if err := j.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("failed to reach reduce barrier: %w", err)
	}

	if err := j.closeJournal(s); err != nil {
		return err
	}
	if err := j.comm.Barrier(ctx); err != nil {
		return fmt.Errorf("failed to reach final barrier: %w", err)
	}
	if err := r.finish(s); err != nil {
		return err
	}

	j.logger.Info("Job finished: job_id=%s duration=%s", info.ID, time.Since(start))
	return nil
}

func (j *Job) open(info comm.JobInfo) (*session, error) {
	rank := j.comm.Rank()
	store := scratch.NewDiskStore(j.cfg.ScratchDir, info.ID)
	if err := store.Init(); err != nil {
		return nil, err
	}

	jr, err := journal.Open(store.Path(store.Journal(rank)), rank, j.logger)
	if err != nil {
		return nil, err
	}
	if err := jr.SetJobID(info.ID); err != nil {
		jr.Close()
		return nil, err
	}
	if err := jr.Append(types.EntryJobStart, types.JobStart{
		JobID:     info.ID,
		Input:     info.Input,
		WorldSize: j.comm.Size(),
		Reducers:  info.Reducers,
	}); err != nil {
		jr.Close()
		return nil, err
	}

	return &session{
		rank:    rank,
		world:   j.comm.Size(),
		info:    info,
		store:   store,
		journal: jr,
	}, nil
}

// exchangeCounts builds the iteration table. Every worker sends its count to
// every other rank; the coordinator mapped nothing, so its entry is always
// zero and never sent.
func (j *Job) exchangeCounts(ctx context.Context, s *session, count int) error {
	s.counts = make(types.IterationTable, s.world)
	s.counts[s.rank] = count

	if s.rank != types.CoordinatorRank {
		for peer := 0; peer < s.world; peer++ {
			if peer == s.rank {
				continue
			}
			if err := j.comm.Send(ctx, peer, comm.Message{Kind: comm.KindCount, Count: count}); err != nil {
				return fmt.Errorf("failed to send count to rank %d: %w", peer, err)
			}
		}
	}

	for peer := 0; peer < s.world; peer++ {
		if peer == s.rank || peer == types.CoordinatorRank {
			continue
		}
		msg, err := comm.Expect(ctx, j.comm, peer, comm.KindCount)
		if err != nil {
			return fmt.Errorf("failed to gather count from rank %d: %w", peer, err)
		}
		if msg.Count < 0 {
			return types.ProtocolError("gather", "rank %d reported count %d", peer, msg.Count)
		}
		s.counts[peer] = msg.Count
	}

	if err := s.journal.Append(types.EntryCountsGathered, types.CountsGathered{Counts: s.counts}); err != nil {
		return err
	}
	j.logger.Info("Counts gathered: files=%d counts=%v", s.counts.Total(), []int(s.counts))
	return nil
}

func (j *Job) shuffle(s *session, partitions []int) error {
	names := scratch.IntermediateNames(s.store, s.counts)
	merger := mapreduce.NewShuffleMerger(s.store, s.journal, j.logger)
	for _, p := range partitions {
		if _, err := merger.Process(names, p, s.info.Reducers); err != nil {
			return fmt.Errorf("failed to shuffle partition %d: %w", p, err)
		}
	}
	return nil
}

// removeMapOutput deletes the intermediate files this rank wrote. It runs
// after the shuffle barrier, when no merge can still be reading them.
func (j *Job) removeMapOutput(s *session) error {
	for i := 0; i < s.counts[s.rank]; i++ {
		if err := s.store.Remove(s.store.Intermediate(s.rank, i)); err != nil {
			return err
		}
	}
	return s.journal.Append(types.EntryMapCleaned, struct{}{})
}

func (j *Job) reduce(s *session, partitions []int) error {
	out, err := mapreduce.OpenSharedOutput(s.info.Output)
	if err != nil {
		return err
	}
	defer out.Close()

	w := mapreduce.NewReduceWorker(s.store, j.reducer, out, s.journal, j.logger)
	for _, p := range partitions {
		if _, err := w.Run(p); err != nil {
			return fmt.Errorf("failed to reduce partition %d: %w", p, err)
		}
	}
	return nil
}

func (j *Job) closeJournal(s *session) error {
	if err := s.journal.Append(types.EntryJobDone, struct{}{}); err != nil {
		return err
	}
	err := s.journal.Close()
	s.journal = nil
	if err != nil {
		return types.IOError("journal close", err)
	}
	return s.store.Remove(s.store.Journal(s.rank))
}
