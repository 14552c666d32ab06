package mapreduce

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DistReduce/internal/codec"
	"DistReduce/internal/types"
)

// groups parses a partition file into key -> sorted values.
func groups(t *testing.T, content string) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		if line == "" {
			continue
		}
		key, values, err := codec.ParseGroup(line)
		require.NoError(t, err)
		_, dup := out[key]
		require.False(t, dup, "key %q emitted twice", key)
		sort.Strings(values)
		out[key] = values
	}
	return out
}

var shuffleInputs = map[string]string{
	"tmp_map_1iter0": "apple\tx\nbanana\t1\ncherry\t1\n",
	"tmp_map_1iter1": "apple\ty\napple\tz\ndate\t1\n",
	"tmp_map_2iter0": "banana\t2\ncherry\t2\nelder\t1\nfig\t1\n",
}

func shuffleNames() []string {
	return []string{"tmp_map_1iter0", "tmp_map_1iter1", "tmp_map_2iter0"}
}

func TestMergeGroupsKeysAcrossFiles(t *testing.T) {
	store := newStore(t)
	for name, content := range shuffleInputs {
		writeScratch(t, store, name, content)
	}
	m := NewShuffleMerger(store, nil, quiet)

	n, err := m.Process(shuffleNames(), 0, 1)
	require.NoError(t, err)

	assert.Equal(t, 6, n)
	assert.Equal(t,
		"apple\tx y z\nbanana\t1 2\ncherry\t1 2\ndate\t1\nelder\t1\nfig\t1\n",
		readScratch(t, store, "reducer_0"))
}

func TestMergePartitionsAreDisjointAndComplete(t *testing.T) {
	const count = 3
	store := newStore(t)
	for name, content := range shuffleInputs {
		writeScratch(t, store, name, content)
	}
	m := NewShuffleMerger(store, nil, quiet)

	union := make(map[string][]string)
	for p := 0; p < count; p++ {
		_, err := m.Process(shuffleNames(), p, count)
		require.NoError(t, err)

		for key, values := range groups(t, readScratch(t, store, fmt.Sprintf("reducer_%d", p))) {
			assert.Equal(t, p, codec.Partition(key, count), "key %q in wrong partition", key)
			_, seen := union[key]
			assert.False(t, seen, "key %q in two partitions", key)
			union[key] = values
		}
	}

	assert.Equal(t, map[string][]string{
		"apple":  {"x", "y", "z"},
		"banana": {"1", "2"},
		"cherry": {"1", "2"},
		"date":   {"1"},
		"elder":  {"1"},
		"fig":    {"1"},
	}, union)

	// inputs stay until the job removes them
	for _, name := range shuffleNames() {
		assert.NotEmpty(t, readScratch(t, store, name))
	}
}

func TestMergeIsIndependentOfFileOrder(t *testing.T) {
	store := newStore(t)
	for name, content := range shuffleInputs {
		writeScratch(t, store, name, content)
	}
	m := NewShuffleMerger(store, nil, quiet)

	_, err := m.Process(shuffleNames(), 0, 1)
	require.NoError(t, err)
	forward := groups(t, readScratch(t, store, "reducer_0"))

	names := shuffleNames()
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	_, err = m.Process(names, 0, 1)
	require.NoError(t, err)
	backward := groups(t, readScratch(t, store, "reducer_0"))

	assert.Equal(t, forward, backward)
}

func TestMergeWithNoInputs(t *testing.T) {
	store := newStore(t)
	writeScratch(t, store, "tmp_map_1iter0", "")
	rec := &memRecorder{}
	m := NewShuffleMerger(store, rec, quiet)

	n, err := m.Process(nil, 0, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, readScratch(t, store, "reducer_0"))

	n, err = m.Process([]string{"tmp_map_1iter0"}, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{types.EntryShufflePartition, types.EntryShufflePartition}, rec.types())
}

func TestMergeCorruptLine(t *testing.T) {
	store := newStore(t)
	writeScratch(t, store, "tmp_map_1iter0", "a\t1\nno-tab-here\n")
	m := NewShuffleMerger(store, nil, quiet)

	_, err := m.Process([]string{"tmp_map_1iter0"}, 0, 1)
	assert.ErrorIs(t, err, types.ErrCodec)
}

func TestMergeMissingInput(t *testing.T) {
	m := NewShuffleMerger(newStore(t), nil, quiet)

	_, err := m.Process([]string{"tmp_map_9iter9"}, 0, 1)
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestMergeRejectsBadPartition(t *testing.T) {
	m := NewShuffleMerger(newStore(t), nil, quiet)

	_, err := m.Process(nil, 3, 3)
	assert.Error(t, err)
}

func TestStreamHeapOrdersByKeyThenFile(t *testing.T) {
	h := streamHeap{
		{index: 2, cur: types.KeyValue{Key: "b"}},
		{index: 1, cur: types.KeyValue{Key: "a"}},
		{index: 0, cur: types.KeyValue{Key: "b"}},
	}
	sort.Sort(h)

	assert.Equal(t, []int{1, 0, 2}, []int{h[0].index, h[1].index, h[2].index})
}
