package mapreduce

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DistReduce/internal/types"
	"DistReduce/internal/wordcount"
)

func openOutput(t *testing.T) (*SharedOutput, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "result")
	require.NoError(t, ResetSharedOutput(path))
	out, err := OpenSharedOutput(path)
	require.NoError(t, err)
	t.Cleanup(func() { out.Close() })
	return out, path
}

func TestReduceAppendsOneRecordPerGroup(t *testing.T) {
	store := newStore(t)
	writeScratch(t, store, "reducer_2", "a\t1 1 1\nb\t1 1\nc\t1\n")
	out, path := openOutput(t)
	rec := &memRecorder{}

	n, err := NewReduceWorker(store, wordcount.WordCount{}, out, rec, quiet).Run(2)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a\t3", "b\t2", "c\t1"}, sortedLines(string(data)))

	names, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, names, "partition file must be deleted")
	assert.Equal(t, []string{types.EntryReducePartition}, rec.types())
}

func TestReduceKeepsValuesWithUnicodeSpaces(t *testing.T) {
	store := newStore(t)
	m := NewShuffleMerger(store, nil, quiet)
	writeScratch(t, store, "tmp_map_1iter0", "k\ta\u00a0b\nk\tc\u2003d\n")

	_, err := m.Process([]string{"tmp_map_1iter0"}, 0, 1)
	require.NoError(t, err)
	out, path := openOutput(t)

	n, err := NewReduceWorker(store, wordcount.WordCount{}, out, nil, quiet).Run(0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "k\t2\n", string(data))
}

func TestReduceEmptyPartition(t *testing.T) {
	store := newStore(t)
	writeScratch(t, store, "reducer_0", "")
	out, path := openOutput(t)

	n, err := NewReduceWorker(store, wordcount.WordCount{}, out, nil, quiet).Run(0)
	require.NoError(t, err)
	assert.Zero(t, n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestReduceCorruptPartitionKeepsFile(t *testing.T) {
	store := newStore(t)
	writeScratch(t, store, "reducer_0", "a\n")
	out, _ := openOutput(t)

	_, err := NewReduceWorker(store, wordcount.WordCount{}, out, nil, quiet).Run(0)
	assert.ErrorIs(t, err, types.ErrCodec)
	assert.Equal(t, "a\n", readScratch(t, store, "reducer_0"))
}

func TestReduceMissingPartition(t *testing.T) {
	out, _ := openOutput(t)

	_, err := NewReduceWorker(newStore(t), wordcount.WordCount{}, out, nil, quiet).Run(4)
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestResetTruncatesOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result")
	require.NoError(t, os.WriteFile(path, []byte("stale\t1\n"), 0644))

	require.NoError(t, ResetSharedOutput(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestConcurrentAppendersNeverInterleave(t *testing.T) {
	const writers, lines = 8, 400
	path := filepath.Join(t.TempDir(), "result")
	require.NoError(t, ResetSharedOutput(path))

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// each writer has its own descriptor, like a separate rank
			out, err := OpenSharedOutput(path)
			if !assert.NoError(t, err) {
				return
			}
			defer out.Close()
			for i := 0; i < lines; i++ {
				line := fmt.Sprintf("writer%02d-line%04d-%s\t%d\n", w, i, "padpadpadpadpadpadpadpad", i)
				if !assert.NoError(t, out.Append([]byte(line))) {
					return
				}
			}
		}(w)
	}
	wg.Wait()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	got := sortedLines(string(data))
	require.Len(t, got, writers*lines)

	seen := make(map[string]bool)
	for _, line := range got {
		var w, i, v int
		_, err := fmt.Sscanf(line, "writer%02d-line%04d-padpadpadpadpadpadpadpad\t%d", &w, &i, &v)
		require.NoError(t, err, "corrupted line %q", line)
		assert.Equal(t, i, v)
		seen[line] = true
	}
	assert.Len(t, seen, writers*lines)
}
