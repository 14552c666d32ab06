// Package wordcount counts whitespace-separated tokens.
package wordcount

import (
	"strconv"

	"DistReduce/internal/chunk"
	"DistReduce/internal/types"
)

type WordCount struct{}

// Map emits (token, "1") for every whitespace-separated token in block.
func (WordCount) Map(block []byte) []types.KeyValue {
	var res []types.KeyValue
	for _, tok := range Tokens(block) {
		res = append(res, types.KeyValue{Key: tok, Value: "1"})
	}
	return res
}

// Reduce emits the number of values seen for key.
func (WordCount) Reduce(key string, values []string) types.KeyValue {
	return types.KeyValue{Key: key, Value: strconv.Itoa(len(values))}
}

// Tokens splits block on ASCII whitespace.
func Tokens(block []byte) []string {
	var toks []string
	start := -1
	for i, c := range block {
		if chunk.IsSpace(c) {
			if start >= 0 {
				toks = append(toks, string(block[start:i]))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		toks = append(toks, string(block[start:]))
	}
	return toks
}
