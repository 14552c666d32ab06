package types

import "time"

// Phase is the furthest point a rank recorded in its journal.
type Phase string

const (
	PhaseStarted  Phase = "started"
	PhaseMapped   Phase = "mapped"
	PhaseShuffled Phase = "shuffled"
	PhaseReduced  Phase = "reduced"
	PhaseDone     Phase = "done"
)

// Journal entry types.
const (
	EntryJobStart         = "job.start"
	EntryMapFile          = "map.file"
	EntryCountsGathered   = "counts.gathered"
	EntryShufflePartition = "shuffle.partition"
	EntryMapCleaned       = "map.cleaned"
	EntryReducePartition  = "reduce.partition"
	EntryJobDone          = "job.done"
)

// LogEntry is one event in a rank's job journal.
type LogEntry struct {
	Type      string    `json:"type"`
	Rank      int       `json:"rank"`
	Data      []byte    `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JobStart is recorded once per rank when it learns the job parameters.
type JobStart struct {
	JobID     string `json:"job_id"`
	Input     string `json:"input"`
	WorldSize int    `json:"world_size"`
	Reducers  int    `json:"reducers"`
}

// MapFile records an intermediate file written by this rank.
type MapFile struct {
	Name      string    `json:"name"`
	Iteration int       `json:"iteration"`
	Range     ByteRange `json:"range"`
	Records   int       `json:"records"`
}

// CountsGathered records the iteration table as seen by this rank.
type CountsGathered struct {
	Counts IterationTable `json:"counts"`
}

// PartitionEvent records a partition file written by the merge or consumed
// by the reducer.
type PartitionEvent struct {
	Partition int    `json:"partition"`
	Name      string `json:"name"`
	Groups    int    `json:"groups"`
}

// JobState is a rank's journal folded into a summary.
type JobState struct {
	JobID         string         `json:"job_id"`
	Rank          int            `json:"rank"`
	Input         string         `json:"input"`
	WorldSize     int            `json:"world_size"`
	Reducers      int            `json:"reducers"`
	Phase         Phase          `json:"phase"`
	MapFiles      []string       `json:"map_files"`
	MapCleaned    bool           `json:"map_cleaned"`
	Counts        IterationTable `json:"counts"`
	Partitions    map[int]string `json:"partitions"`
	Reduced       map[int]bool   `json:"reduced"`
	Version       int64          `json:"version"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
}

// PendingFiles lists scratch files this rank wrote that may still exist.
func (s *JobState) PendingFiles() []string {
	var files []string
	if !s.MapCleaned {
		files = append(files, s.MapFiles...)
	}
	for id, name := range s.Partitions {
		if !s.Reduced[id] {
			files = append(files, name)
		}
	}
	return files
}
