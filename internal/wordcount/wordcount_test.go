package wordcount

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"DistReduce/internal/types"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "a"}, Tokens([]byte("  a\tb\n\na ")))
	assert.Nil(t, Tokens([]byte(" \n ")))
	assert.Equal(t, []string{"tail"}, Tokens([]byte("tail")))
}

func TestMapReduce(t *testing.T) {
	var wc WordCount

	kvs := wc.Map([]byte("x y x"))
	assert.Equal(t, []types.KeyValue{{Key: "x", Value: "1"}, {Key: "y", Value: "1"}, {Key: "x", Value: "1"}}, kvs)
	assert.Empty(t, wc.Map(nil))

	assert.Equal(t, types.KeyValue{Key: "x", Value: "2"}, wc.Reduce("x", []string{"1", "1"}))
}
