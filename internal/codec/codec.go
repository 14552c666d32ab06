// Package codec reads and writes the line formats shared by every phase:
//
//	intermediate and output lines: <key>\t<value>\n
//	partition lines:               <key>\t<v1> <v2> ... <vN>\n
package codec

import (
	"bufio"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"strings"

	"DistReduce/internal/types"
)

const maxLine = 16 << 20

// Partition returns the partition a key belongs to.
func Partition(key string, count int) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(count))
}

func checkField(field, what string) error {
	if field == "" {
		return types.CodecError("encode", fmt.Errorf("empty %s", what))
	}
	if strings.ContainsAny(field, " \t\n\r\v\f") {
		return types.CodecError("encode", fmt.Errorf("%s %q contains whitespace", what, field))
	}
	return nil
}

// WriteRecord writes one key/value line.
func WriteRecord(w io.Writer, kv types.KeyValue) error {
	if err := checkField(kv.Key, "key"); err != nil {
		return err
	}
	if err := checkField(kv.Value, "value"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, kv.Key+"\t"+kv.Value+"\n"); err != nil {
		return types.IOError("write record", err)
	}
	return nil
}

// FormatRecord returns the line for kv, terminator included.
func FormatRecord(kv types.KeyValue) (string, error) {
	var sb strings.Builder
	if err := WriteRecord(&sb, kv); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ParseRecord splits a line (without terminator) into key and value.
func ParseRecord(line string) (types.KeyValue, error) {
	key, value, ok := strings.Cut(line, "\t")
	if !ok || key == "" || value == "" || strings.Contains(value, "\t") {
		return types.KeyValue{}, types.CodecError("parse record", fmt.Errorf("malformed line %q", line))
	}
	return types.KeyValue{Key: key, Value: value}, nil
}

// WriteGroup writes one partition line for key and its collected values.
func WriteGroup(w io.Writer, key string, values []string) error {
	if err := checkField(key, "key"); err != nil {
		return err
	}
	if len(values) == 0 {
		return types.CodecError("encode", fmt.Errorf("key %q has no values", key))
	}
	if _, err := io.WriteString(w, key+"\t"+strings.Join(values, " ")+"\n"); err != nil {
		return types.IOError("write group", err)
	}
	return nil
}

// ParseGroup splits a partition line (without terminator) into key and
// values. Values are separated by exactly the single space WriteGroup puts
// between them; any other byte, including non-ASCII space, is value text.
func ParseGroup(line string) (string, []string, error) {
	key, rest, ok := strings.Cut(line, "\t")
	if !ok || key == "" || rest == "" {
		return "", nil, types.CodecError("parse group", fmt.Errorf("malformed line %q", line))
	}
	values := strings.Split(rest, " ")
	for _, v := range values {
		if v == "" {
			return "", nil, types.CodecError("parse group", fmt.Errorf("empty value in line %q", line))
		}
	}
	return key, values, nil
}

// LineReader yields the lines of a scratch file one at a time.
type LineReader struct {
	sc *bufio.Scanner
}

func NewLineReader(r io.Reader) *LineReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &LineReader{sc: sc}
}

// Next returns the next line, or io.EOF once the input is exhausted.
func (lr *LineReader) Next() (string, error) {
	if lr.sc.Scan() {
		return lr.sc.Text(), nil
	}
	if err := lr.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return "", types.CodecError("read line", err)
		}
		return "", types.IOError("read line", err)
	}
	return "", io.EOF
}

// NextRecord reads and parses the next key/value line.
func (lr *LineReader) NextRecord() (types.KeyValue, error) {
	line, err := lr.Next()
	if err != nil {
		return types.KeyValue{}, err
	}
	return ParseRecord(line)
}
