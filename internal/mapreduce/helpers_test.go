package mapreduce

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"DistReduce/internal/logger"
	"DistReduce/internal/scratch"
)

func newStore(t *testing.T) *scratch.DiskStore {
	t.Helper()
	s := scratch.NewDiskStore(t.TempDir(), "job")
	require.NoError(t, s.Init())
	return s
}

func writeScratch(t *testing.T, s scratch.Store, name, content string) {
	t.Helper()
	w, err := s.Create(name)
	require.NoError(t, err)
	_, err = io.WriteString(w, content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func readScratch(t *testing.T, s scratch.Store, name string) string {
	t.Helper()
	r, err := s.Open(name)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func sortedLines(s string) []string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil
	}
	sort.Strings(lines)
	return lines
}

var quiet = logger.Discard()

type recorded struct {
	entryType string
	payload   interface{}
}

type memRecorder struct {
	entries []recorded
}

func (m *memRecorder) Append(entryType string, payload interface{}) error {
	m.entries = append(m.entries, recorded{entryType, payload})
	return nil
}

func (m *memRecorder) types() []string {
	var out []string
	for _, e := range m.entries {
		out = append(out, e.entryType)
	}
	return out
}

