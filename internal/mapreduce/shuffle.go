package mapreduce

import (
	"bufio"
	"container/heap"
	"errors"
	"fmt"
	"io"

	"DistReduce/internal/codec"
	"DistReduce/internal/logger"
	"DistReduce/internal/scratch"
	"DistReduce/internal/types"
)

// stream is one open intermediate file positioned on its next record that
// belongs to the partition being merged.
type stream struct {
	index int
	name  string
	rc    io.ReadCloser
	lines *codec.LineReader
	cur   types.KeyValue
}

// advance moves to the next record of the partition. It returns false at
// end of file.
func (s *stream) advance(partition, count int) (bool, error) {
	for {
		kv, err := s.lines.NextRecord()
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%s: %w", s.name, err)
		}
		if codec.Partition(kv.Key, count) == partition {
			s.cur = kv
			return true, nil
		}
	}
}

// streamHeap is a min-heap on the current key. Equal keys come out in file
// order so value lists are deterministic.
type streamHeap []*stream

func (h streamHeap) Len() int { return len(h) }
func (h streamHeap) Less(i, j int) bool {
	if h[i].cur.Key != h[j].cur.Key {
		return h[i].cur.Key < h[j].cur.Key
	}
	return h[i].index < h[j].index
}
func (h streamHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *streamHeap) Push(x interface{}) { *h = append(*h, x.(*stream)) }

func (h *streamHeap) Pop() interface{} {
	old := *h
	n := len(old)
	s := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return s
}

// ShuffleMerger merges the sorted intermediate files of every worker into
// one grouped file per partition.
type ShuffleMerger struct {
	store    scratch.Store
	recorder Recorder
	logger   *logger.Logger
}

func NewShuffleMerger(store scratch.Store, rec Recorder, lg *logger.Logger) *ShuffleMerger {
	return &ShuffleMerger{store: store, recorder: recorderOrNop(rec), logger: lg}
}

// Process streams every file in names, keeps the records whose key hashes to
// partition, and writes one line per distinct key with all of its values to
// the partition file. Only one record per input file is held in memory.
// Input files are left in place; deleting them is the caller's job once no
// partition needs them.
func (m *ShuffleMerger) Process(names []string, partition, count int) (groups int, err error) {
	if partition < 0 || partition >= count {
		return 0, fmt.Errorf("partition %d out of range [0,%d)", partition, count)
	}

	h := make(streamHeap, 0, len(names))
	defer func() {
		for _, s := range h {
			s.rc.Close()
		}
	}()

	for i, name := range names {
		rc, err := m.store.Open(name)
		if err != nil {
			return 0, err
		}
		s := &stream{index: i, name: name, rc: rc, lines: codec.NewLineReader(rc)}
		ok, err := s.advance(partition, count)
		if err != nil {
			rc.Close()
			return 0, err
		}
		if !ok {
			rc.Close()
			continue
		}
		h = append(h, s)
	}
	heap.Init(&h)

	outName := m.store.Partition(partition)
	wc, err := m.store.Create(outName)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := wc.Close(); cerr != nil && err == nil {
			err = types.IOError("close partition", cerr)
		}
	}()
	out := bufio.NewWriter(wc)

	var key string
	var values []string
	for h.Len() > 0 {
		s := h[0]
		if len(values) > 0 && s.cur.Key != key {
			if err := codec.WriteGroup(out, key, values); err != nil {
				return groups, err
			}
			groups++
			values = values[:0]
		}
		key = s.cur.Key
		values = append(values, s.cur.Value)

		ok, err := s.advance(partition, count)
		if err != nil {
			return groups, err
		}
		if ok {
			heap.Fix(&h, 0)
			continue
		}
		heap.Pop(&h)
		s.rc.Close()
	}
	if len(values) > 0 {
		if err := codec.WriteGroup(out, key, values); err != nil {
			return groups, err
		}
		groups++
	}
	if err := out.Flush(); err != nil {
		return groups, types.IOError("flush partition", err)
	}

	if err := m.recorder.Append(types.EntryShufflePartition, types.PartitionEvent{
		Partition: partition,
		Name:      outName,
		Groups:    groups,
	}); err != nil {
		return groups, err
	}

	m.logger.Info("Partition merged: partition=%d inputs=%d groups=%d", partition, len(names), groups)
	return groups, nil
}
