package journal

import (
	"encoding/json"
	"fmt"
	"sync"

	raft "github.com/hashicorp/raft"

	"DistReduce/internal/types"
)

// FSM folds journal entries into a JobState.
type FSM struct {
	mu    sync.RWMutex
	state *types.JobState
}

func NewFSM() *FSM {
	return &FSM{
		state: &types.JobState{
			Partitions: make(map[int]string),
			Reduced:    make(map[int]bool),
		},
	}
}

// Apply processes one journal record. It returns an error value for records
// it cannot decode and nil otherwise.
func (f *FSM) Apply(log *raft.Log) interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entry types.LogEntry
	if err := json.Unmarshal(log.Data, &entry); err != nil {
		return fmt.Errorf("failed to unmarshal log entry %d: %w", log.Index, err)
	}

	s := f.state
	switch entry.Type {
	case types.EntryJobStart:
		var p types.JobStart
		if err := json.Unmarshal(entry.Data, &p); err != nil {
			return fmt.Errorf("invalid job start data: %w", err)
		}
		s.JobID = p.JobID
		s.Rank = entry.Rank
		s.Input = p.Input
		s.WorldSize = p.WorldSize
		s.Reducers = p.Reducers
		s.Phase = types.PhaseStarted

	case types.EntryMapFile:
		var p types.MapFile
		if err := json.Unmarshal(entry.Data, &p); err != nil {
			return fmt.Errorf("invalid map file data: %w", err)
		}
		s.MapFiles = append(s.MapFiles, p.Name)

	case types.EntryCountsGathered:
		var p types.CountsGathered
		if err := json.Unmarshal(entry.Data, &p); err != nil {
			return fmt.Errorf("invalid counts data: %w", err)
		}
		s.Counts = p.Counts
		s.Phase = types.PhaseMapped

	case types.EntryShufflePartition:
		var p types.PartitionEvent
		if err := json.Unmarshal(entry.Data, &p); err != nil {
			return fmt.Errorf("invalid shuffle data: %w", err)
		}
		s.Partitions[p.Partition] = p.Name

	case types.EntryMapCleaned:
		s.MapCleaned = true
		s.Phase = types.PhaseShuffled

	case types.EntryReducePartition:
		var p types.PartitionEvent
		if err := json.Unmarshal(entry.Data, &p); err != nil {
			return fmt.Errorf("invalid reduce data: %w", err)
		}
		s.Reduced[p.Partition] = true

	case types.EntryJobDone:
		s.Phase = types.PhaseDone

	default:
		return fmt.Errorf("unknown log entry type: %s", entry.Type)
	}

	s.Version++
	s.LastUpdatedAt = entry.Timestamp
	return nil
}

// GetState returns a copy of the folded state.
func (f *FSM) GetState() *types.JobState {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cp := *f.state
	cp.MapFiles = append([]string(nil), f.state.MapFiles...)
	cp.Counts = append(types.IterationTable(nil), f.state.Counts...)
	cp.Partitions = make(map[int]string, len(f.state.Partitions))
	for k, v := range f.state.Partitions {
		cp.Partitions[k] = v
	}
	cp.Reduced = make(map[int]bool, len(f.state.Reduced))
	for k, v := range f.state.Reduced {
		cp.Reduced[k] = v
	}
	return &cp
}
