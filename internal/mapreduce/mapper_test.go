package mapreduce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DistReduce/internal/comm"
	"DistReduce/internal/types"
	"DistReduce/internal/wordcount"
)

func TestProcessWritesSortedIntermediateFile(t *testing.T) {
	store := newStore(t)
	src := writeSource(t, "pear apple fig apple banana")
	rec := &memRecorder{}
	w := NewMapWorker(1, src, wordcount.WordCount{}, store, rec, quiet)

	name, err := w.Process(types.ByteRange{Start: 0, Length: 27})
	require.NoError(t, err)

	assert.Equal(t, "tmp_map_1iter0", name)
	assert.Equal(t, 1, w.Iterations())
	assert.Equal(t, "apple\t1\napple\t1\nbanana\t1\nfig\t1\npear\t1\n", readScratch(t, store, name))
	assert.Equal(t, []string{types.EntryMapFile}, rec.types())
}

func TestProcessIsIdempotent(t *testing.T) {
	src := writeSource(t, "c b a c b a zz")
	r := types.ByteRange{Start: 0, Length: 14}

	first := newStore(t)
	second := newStore(t)
	_, err := NewMapWorker(1, src, wordcount.WordCount{}, first, nil, quiet).Process(r)
	require.NoError(t, err)
	_, err = NewMapWorker(1, src, wordcount.WordCount{}, second, nil, quiet).Process(r)
	require.NoError(t, err)

	assert.Equal(t, readScratch(t, first, "tmp_map_1iter0"), readScratch(t, second, "tmp_map_1iter0"))
}

func TestProcessOnlySeesItsRange(t *testing.T) {
	store := newStore(t)
	src := writeSource(t, "one two three")
	w := NewMapWorker(2, src, wordcount.WordCount{}, store, nil, quiet)

	_, err := w.Process(types.ByteRange{Start: 3, Length: 4})
	require.NoError(t, err)

	assert.Equal(t, "two\t1\n", readScratch(t, store, "tmp_map_2iter0"))
}

func TestProcessEmptyMapOutput(t *testing.T) {
	store := newStore(t)
	src := writeSource(t, "   ")
	w := NewMapWorker(1, src, wordcount.WordCount{}, store, nil, quiet)

	_, err := w.Process(types.ByteRange{Start: 0, Length: 3})
	require.NoError(t, err)
	assert.Empty(t, readScratch(t, store, "tmp_map_1iter0"))
}

func TestProcessShortReadIsFatal(t *testing.T) {
	store := newStore(t)
	src := writeSource(t, "short")
	w := NewMapWorker(1, src, wordcount.WordCount{}, store, nil, quiet)

	_, err := w.Process(types.ByteRange{Start: 2, Length: 10})
	assert.True(t, errors.Is(err, types.ErrIO))
	assert.Equal(t, 0, w.Iterations())
}

func TestProcessMissingSource(t *testing.T) {
	w := NewMapWorker(1, "/nonexistent/source", wordcount.WordCount{}, newStore(t), nil, quiet)

	_, err := w.Process(types.ByteRange{Start: 0, Length: 1})
	assert.ErrorIs(t, err, types.ErrIO)
}

func TestProcessRejectsWhitespaceKeys(t *testing.T) {
	bad := MapFunc(func([]byte) []types.KeyValue {
		return []types.KeyValue{{Key: "two words", Value: "1"}}
	})
	w := NewMapWorker(1, writeSource(t, "x"), bad, newStore(t), nil, quiet)

	_, err := w.Process(types.ByteRange{Start: 0, Length: 1})
	assert.ErrorIs(t, err, types.ErrCodec)
}

func TestRunConsumesRangesUntilNoWork(t *testing.T) {
	net := comm.NewNetwork(2)
	defer net.Close()
	ctx := context.Background()
	store := newStore(t)
	src := writeSource(t, "a b c d")

	coord := net.Endpoint(0)
	require.NoError(t, coord.Send(ctx, 1, comm.Message{Kind: comm.KindRange, Range: types.ByteRange{Start: 0, Length: 3}}))
	require.NoError(t, coord.Send(ctx, 1, comm.Message{Kind: comm.KindRange, Range: types.ByteRange{Start: 3, Length: 4}}))
	require.NoError(t, coord.Send(ctx, 1, comm.Message{Kind: comm.KindNoWork}))

	w := NewMapWorker(1, src, wordcount.WordCount{}, store, nil, quiet)
	n, err := w.Run(ctx, net.Endpoint(1))

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "a\t1\nb\t1\n", readScratch(t, store, "tmp_map_1iter0"))
	assert.Equal(t, "c\t1\nd\t1\n", readScratch(t, store, "tmp_map_1iter1"))
}

func TestRunRejectsUnexpectedMessage(t *testing.T) {
	net := comm.NewNetwork(2)
	defer net.Close()
	ctx := context.Background()

	require.NoError(t, net.Endpoint(0).Send(ctx, 1, comm.Message{Kind: comm.KindCount}))

	w := NewMapWorker(1, writeSource(t, "a"), wordcount.WordCount{}, newStore(t), nil, quiet)
	_, err := w.Run(ctx, net.Endpoint(1))
	assert.ErrorIs(t, err, types.ErrProtocol)
}
