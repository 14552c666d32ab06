package grep

import (
	"fmt"
	"regexp"
	"strconv"

	"DistReduce/internal/types"
	"DistReduce/internal/wordcount"
)

// DistributedGrep counts the tokens that match a regular expression.
type DistributedGrep struct {
	pattern string
	regex   *regexp.Regexp
}

// NewDistributedGrep creates a new DistributedGrep instance.
func NewDistributedGrep(pattern string) (*DistributedGrep, error) {
	regex, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex pattern: %w", err)
	}

	return &DistributedGrep{
		pattern: pattern,
		regex:   regex,
	}, nil
}

func (dg *DistributedGrep) Pattern() string {
	return dg.pattern
}

// Map emits (token, "1") for every token of block the pattern matches.
func (dg *DistributedGrep) Map(block []byte) []types.KeyValue {
	var results []types.KeyValue
	for _, tok := range wordcount.Tokens(block) {
		if dg.regex.MatchString(tok) {
			results = append(results, types.KeyValue{Key: tok, Value: "1"})
		}
	}
	return results
}

// Reduce counts the matches of one token. Map emits one value per match.
func (dg *DistributedGrep) Reduce(key string, values []string) types.KeyValue {
	return types.KeyValue{Key: key, Value: strconv.Itoa(len(values))}
}
