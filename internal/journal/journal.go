// Package journal keeps an append-only record of what one rank did during a
// job. Entries are raft log records in a Bolt file inside the job's scratch
// namespace; replaying them tells a sweeper which scratch files an aborted
// job left behind.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	raft "github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb/v2"
	bolt "go.etcd.io/bbolt"

	"DistReduce/internal/logger"
	"DistReduce/internal/types"
)

var (
	keyJobID = []byte("job_id")
	keyRank  = []byte("rank")
)

// LockTimeout bounds how long Open waits for a journal another process
// holds open.
var LockTimeout = time.Second

// ErrLocked is returned by Open when the journal belongs to a live process.
var ErrLocked = errors.New("journal is in use")

// Journal appends job events for one rank.
type Journal struct {
	rank        int
	path        string
	store       *raftboltdb.BoltStore
	logStore    raft.LogStore
	stableStore raft.StableStore
	logger      *logger.Logger

	mu sync.Mutex
}

// Open opens or creates the journal file at path.
func Open(path string, rank int, lg *logger.Logger) (*Journal, error) {
	store, err := raftboltdb.New(raftboltdb.Options{
		Path:        path,
		BoltOptions: &bolt.Options{Timeout: LockTimeout},
	})
	if err != nil {
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, types.IOError("journal open", fmt.Errorf("failed to create log store: %w", err))
	}

	j := &Journal{
		rank:        rank,
		path:        path,
		store:       store,
		logStore:    store,
		stableStore: store,
		logger:      lg,
	}

	if err := j.stableStore.SetUint64(keyRank, uint64(rank)); err != nil {
		store.Close()
		return nil, types.IOError("journal open", err)
	}
	return j, nil
}

func (j *Journal) Path() string {
	return j.path
}

// SetJobID stamps the journal with the job it belongs to.
func (j *Journal) SetJobID(id string) error {
	if err := j.stableStore.Set(keyJobID, []byte(id)); err != nil {
		return types.IOError("journal set job", err)
	}
	return nil
}

// JobID returns the stamped job id, or "" if none was set.
func (j *Journal) JobID() (string, error) {
	v, err := j.stableStore.Get(keyJobID)
	if err != nil {
		if errors.Is(err, raftboltdb.ErrKeyNotFound) {
			return "", nil
		}
		return "", types.IOError("journal get job", err)
	}
	return string(v), nil
}

// Rank returns the rank recorded in the journal file.
func (j *Journal) Rank() (int, error) {
	v, err := j.stableStore.GetUint64(keyRank)
	if err != nil {
		return 0, types.IOError("journal get rank", err)
	}
	return int(v), nil
}

// Append records an event of entryType with a JSON-encoded payload.
func (j *Journal) Append(entryType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", entryType, err)
	}

	now := time.Now()
	entry, err := json.Marshal(&types.LogEntry{
		Type:      entryType,
		Rank:      j.rank,
		Data:      data,
		Timestamp: now,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	last, err := j.logStore.LastIndex()
	if err != nil {
		return types.IOError("journal append", err)
	}
	record := &raft.Log{
		Index:      last + 1,
		Term:       1,
		Type:       raft.LogCommand,
		Data:       entry,
		AppendedAt: now,
	}
	if err := j.logStore.StoreLog(record); err != nil {
		return types.IOError("journal append", err)
	}

	j.logger.Debug("Journal entry: rank=%d index=%d type=%s", j.rank, record.Index, entryType)
	return nil
}

// Replay feeds every entry, oldest first, to fsm.
func (j *Journal) Replay(fsm *FSM) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	first, err := j.logStore.FirstIndex()
	if err != nil {
		return types.IOError("journal replay", err)
	}
	last, err := j.logStore.LastIndex()
	if err != nil {
		return types.IOError("journal replay", err)
	}
	if last == 0 {
		return nil
	}

	for idx := first; idx <= last; idx++ {
		var record raft.Log
		if err := j.logStore.GetLog(idx, &record); err != nil {
			return types.IOError("journal replay", fmt.Errorf("index %d: %w", idx, err))
		}
		if res := fsm.Apply(&record); res != nil {
			if err, ok := res.(error); ok {
				return types.CodecError("journal replay", err)
			}
		}
	}
	return nil
}

// Close releases the Bolt file.
func (j *Journal) Close() error {
	return j.store.Close()
}
