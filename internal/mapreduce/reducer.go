package mapreduce

import (
	"errors"
	"io"

	"DistReduce/internal/codec"
	"DistReduce/internal/logger"
	"DistReduce/internal/scratch"
	"DistReduce/internal/types"
)

// ReduceWorker consumes partition files and appends results to the shared
// output.
type ReduceWorker struct {
	store    scratch.Store
	reducer  Reducer
	out      *SharedOutput
	recorder Recorder
	logger   *logger.Logger
}

func NewReduceWorker(store scratch.Store, reducer Reducer, out *SharedOutput, rec Recorder, lg *logger.Logger) *ReduceWorker {
	return &ReduceWorker{
		store:    store,
		reducer:  reducer,
		out:      out,
		recorder: recorderOrNop(rec),
		logger:   lg,
	}
}

// Run reduces every group of the partition file, then deletes the file.
// It returns the number of records appended.
func (w *ReduceWorker) Run(partition int) (int, error) {
	name := w.store.Partition(partition)
	rc, err := w.store.Open(name)
	if err != nil {
		return 0, err
	}

	n, err := w.consume(rc)
	rc.Close()
	if err != nil {
		return n, err
	}

	if err := w.store.Remove(name); err != nil {
		return n, err
	}
	if err := w.recorder.Append(types.EntryReducePartition, types.PartitionEvent{
		Partition: partition,
		Name:      name,
		Groups:    n,
	}); err != nil {
		return n, err
	}

	w.logger.Info("Partition reduced: partition=%d records=%d", partition, n)
	return n, nil
}

func (w *ReduceWorker) consume(r io.Reader) (int, error) {
	lines := codec.NewLineReader(r)
	n := 0
	for {
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		key, values, err := codec.ParseGroup(line)
		if err != nil {
			return n, err
		}
		result, err := codec.FormatRecord(w.reducer.Reduce(key, values))
		if err != nil {
			return n, err
		}
		if err := w.out.Append([]byte(result)); err != nil {
			return n, err
		}
		n++
	}
}
