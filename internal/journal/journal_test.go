package journal

import (
	"path/filepath"
	"testing"
	"time"

	raft "github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DistReduce/internal/logger"
	"DistReduce/internal/types"
)

func openJournal(t *testing.T, path string, rank int) *Journal {
	t.Helper()
	j, err := Open(path, rank, logger.Discard())
	require.NoError(t, err)
	return j
}

func TestReplayRebuildsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal_1.db")
	j := openJournal(t, path, 1)

	require.NoError(t, j.SetJobID("job-42"))
	require.NoError(t, j.Append(types.EntryJobStart, types.JobStart{JobID: "job-42", Input: "data", WorldSize: 3, Reducers: 4}))
	require.NoError(t, j.Append(types.EntryMapFile, types.MapFile{Name: "tmp_map_1iter0", Range: types.ByteRange{Start: 0, Length: 10}}))
	require.NoError(t, j.Append(types.EntryMapFile, types.MapFile{Name: "tmp_map_1iter1", Iteration: 1}))
	require.NoError(t, j.Append(types.EntryCountsGathered, types.CountsGathered{Counts: types.IterationTable{0, 2, 1}}))
	require.NoError(t, j.Append(types.EntryShufflePartition, types.PartitionEvent{Partition: 1, Name: "reducer_1"}))
	require.NoError(t, j.Close())

	// reopened from disk, as a sweeper would
	j = openJournal(t, path, 1)
	defer j.Close()

	id, err := j.JobID()
	require.NoError(t, err)
	assert.Equal(t, "job-42", id)
	rank, err := j.Rank()
	require.NoError(t, err)
	assert.Equal(t, 1, rank)

	fsm := NewFSM()
	require.NoError(t, j.Replay(fsm))
	state := fsm.GetState()

	assert.Equal(t, "job-42", state.JobID)
	assert.Equal(t, 1, state.Rank)
	assert.Equal(t, types.PhaseMapped, state.Phase)
	assert.Equal(t, types.IterationTable{0, 2, 1}, state.Counts)
	assert.Equal(t, int64(5), state.Version)
	assert.ElementsMatch(t, []string{"tmp_map_1iter0", "tmp_map_1iter1", "reducer_1"}, state.PendingFiles())
}

func TestReplayEmptyJournal(t *testing.T) {
	j := openJournal(t, filepath.Join(t.TempDir(), "j.db"), 0)
	defer j.Close()

	id, err := j.JobID()
	require.NoError(t, err)
	assert.Empty(t, id)

	fsm := NewFSM()
	require.NoError(t, j.Replay(fsm))
	assert.Empty(t, fsm.GetState().PendingFiles())
}

func TestApplyRejectsUnknownEntry(t *testing.T) {
	fsm := NewFSM()

	res := fsm.Apply(&raft.Log{Index: 1, Data: []byte(`{"type":"bogus"}`)})
	assert.Error(t, res.(error))

	res = fsm.Apply(&raft.Log{Index: 2, Data: []byte(`not json`)})
	assert.Error(t, res.(error))
}

func TestDoneJobHasNothingPending(t *testing.T) {
	j := openJournal(t, filepath.Join(t.TempDir(), "j.db"), 2)
	defer j.Close()

	require.NoError(t, j.Append(types.EntryJobStart, types.JobStart{JobID: "x"}))
	require.NoError(t, j.Append(types.EntryMapFile, types.MapFile{Name: "tmp_map_2iter0"}))
	require.NoError(t, j.Append(types.EntryShufflePartition, types.PartitionEvent{Partition: 0, Name: "reducer_0"}))
	require.NoError(t, j.Append(types.EntryMapCleaned, struct{}{}))
	require.NoError(t, j.Append(types.EntryReducePartition, types.PartitionEvent{Partition: 0, Name: "reducer_0"}))
	require.NoError(t, j.Append(types.EntryJobDone, struct{}{}))

	fsm := NewFSM()
	require.NoError(t, j.Replay(fsm))
	state := fsm.GetState()
	assert.Equal(t, types.PhaseDone, state.Phase)
	assert.Empty(t, state.PendingFiles())
}

func TestOpenLockedJournal(t *testing.T) {
	defer func(d time.Duration) { LockTimeout = d }(LockTimeout)
	LockTimeout = 50 * time.Millisecond

	path := filepath.Join(t.TempDir(), "journal_2.db")
	j := openJournal(t, path, 2)
	defer j.Close()

	_, err := Open(path, 2, logger.Discard())
	assert.ErrorIs(t, err, ErrLocked)
}
