// Package mapreduce holds the three per-rank workers of a job: MapWorker
// turns byte ranges into sorted intermediate files, ShuffleMerger merges
// those files into one grouped file per partition, and ReduceWorker folds
// each group into the shared output.
package mapreduce

import "DistReduce/internal/types"

// Mapper converts one word-aligned block of the source into records.
type Mapper interface {
	Map(block []byte) []types.KeyValue
}

// Reducer folds every value collected for key into one output record.
type Reducer interface {
	Reduce(key string, values []string) types.KeyValue
}

// MapFunc adapts a function to Mapper.
type MapFunc func(block []byte) []types.KeyValue

func (f MapFunc) Map(block []byte) []types.KeyValue { return f(block) }

// ReduceFunc adapts a function to Reducer.
type ReduceFunc func(key string, values []string) types.KeyValue

func (f ReduceFunc) Reduce(key string, values []string) types.KeyValue { return f(key, values) }

// Recorder receives job events. The journal implements it.
type Recorder interface {
	Append(entryType string, payload interface{}) error
}

type nopRecorder struct{}

func (nopRecorder) Append(string, interface{}) error { return nil }

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
