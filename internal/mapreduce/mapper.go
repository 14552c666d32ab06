package mapreduce

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"DistReduce/internal/codec"
	"DistReduce/internal/comm"
	"DistReduce/internal/logger"
	"DistReduce/internal/scratch"
	"DistReduce/internal/types"
)

// MapWorker processes the ranges a worker rank is handed.
type MapWorker struct {
	rank      int
	source    string
	mapper    Mapper
	store     scratch.Store
	recorder  Recorder
	logger    *logger.Logger
	iteration int
}

func NewMapWorker(rank int, source string, mapper Mapper, store scratch.Store, rec Recorder, lg *logger.Logger) *MapWorker {
	return &MapWorker{
		rank:     rank,
		source:   source,
		mapper:   mapper,
		store:    store,
		recorder: recorderOrNop(rec),
		logger:   lg,
	}
}

// Iterations is the number of intermediate files written so far.
func (w *MapWorker) Iterations() int {
	return w.iteration
}

// Run receives ranges from the coordinator until it is told there is no
// more work, and returns the number of intermediate files written.
func (w *MapWorker) Run(ctx context.Context, c comm.Communicator) (int, error) {
	for {
		msg, err := comm.Expect(ctx, c, types.CoordinatorRank, comm.KindRange, comm.KindNoWork)
		if err != nil {
			return w.iteration, err
		}
		if msg.Kind == comm.KindNoWork {
			w.logger.Info("Map loop finished: rank=%d files=%d", w.rank, w.iteration)
			return w.iteration, nil
		}
		if _, err := w.Process(msg.Range); err != nil {
			return w.iteration, err
		}
	}
}

// Process maps one range and writes its sorted records to the next
// intermediate file, whose name it returns.
func (w *MapWorker) Process(r types.ByteRange) (string, error) {
	block, err := w.read(r)
	if err != nil {
		return "", err
	}

	records := w.mapper.Map(block)
	sort.Stable(types.ByKey(records))

	name := w.store.Intermediate(w.rank, w.iteration)
	if err := writeRecords(w.store, name, records); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := w.recorder.Append(types.EntryMapFile, types.MapFile{
		Name:      name,
		Iteration: w.iteration,
		Range:     r,
		Records:   len(records),
	}); err != nil {
		return "", err
	}

	w.logger.Debug("Mapped range: rank=%d range=%s records=%d file=%s", w.rank, r, len(records), name)
	w.iteration++
	return name, nil
}

func (w *MapWorker) read(r types.ByteRange) ([]byte, error) {
	f, err := os.Open(w.source)
	if err != nil {
		return nil, types.IOError("map open", err)
	}
	defer f.Close()

	buf := make([]byte, r.Length)
	if _, err := io.ReadFull(io.NewSectionReader(f, r.Start, r.Length), buf); err != nil {
		return nil, types.IOError("map read", fmt.Errorf("range %s of %s: %w", r, w.source, err))
	}
	return buf, nil
}

func writeRecords(store scratch.Store, name string, records []types.KeyValue) error {
	wc, err := store.Create(name)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(wc)
	for _, kv := range records {
		if err := codec.WriteRecord(bw, kv); err != nil {
			wc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		wc.Close()
		return types.IOError("flush", err)
	}
	if err := wc.Close(); err != nil {
		return types.IOError("close", err)
	}
	return nil
}
