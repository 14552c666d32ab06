// Package scratch names and stores the files phases hand to each other.
//
// Names are the only message between phases: a map worker of rank r writes
// its i-th output as Intermediate(r, i), the merge for partition p writes
// Partition(p). Anything that can resolve these names can stand in for the
// local disk.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"DistReduce/internal/types"
)

// Namer maps phase coordinates to scratch names.
type Namer interface {
	Intermediate(rank, iteration int) string
	Partition(id int) string
	Journal(rank int) string
}

// Store holds the scratch files of one job.
type Store interface {
	Namer
	Create(name string) (io.WriteCloser, error)
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
	// Path returns a local filesystem path for name, for stores that need one.
	Path(name string) string
}

// IntermediateNames enumerates every intermediate file the map phase wrote:
// for rank r, iterations 0..counts[r]-1.
func IntermediateNames(n Namer, counts types.IterationTable) []string {
	names := make([]string, 0, counts.Total())
	for rank, count := range counts {
		for i := 0; i < count; i++ {
			names = append(names, n.Intermediate(rank, i))
		}
	}
	return names
}

// DiskStore keeps a job's scratch files in <root>/<jobID>.
type DiskStore struct {
	root  string
	jobID string
	dir   string
}

func NewDiskStore(root, jobID string) *DiskStore {
	return &DiskStore{
		root:  root,
		jobID: jobID,
		dir:   filepath.Join(root, jobID),
	}
}

// Init creates the job namespace.
func (s *DiskStore) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return types.IOError("scratch init", fmt.Errorf("failed to create scratch dir: %w", err))
	}
	return nil
}

func (s *DiskStore) Dir() string   { return s.dir }
func (s *DiskStore) JobID() string { return s.jobID }

func (s *DiskStore) Intermediate(rank, iteration int) string {
	return fmt.Sprintf("tmp_map_%diter%d", rank, iteration)
}

func (s *DiskStore) Partition(id int) string {
	return fmt.Sprintf("reducer_%d", id)
}

func (s *DiskStore) Journal(rank int) string {
	return fmt.Sprintf("journal_%d.db", rank)
}

func (s *DiskStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *DiskStore) Create(name string) (io.WriteCloser, error) {
	f, err := os.Create(s.Path(name))
	if err != nil {
		return nil, types.IOError("scratch create", err)
	}
	return f, nil
}

func (s *DiskStore) Open(name string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(name))
	if err != nil {
		return nil, types.IOError("scratch open", err)
	}
	return f, nil
}

// Remove deletes name. A file that is already gone is not an error.
func (s *DiskStore) Remove(name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.IOError("scratch remove", err)
	}
	return nil
}

// List returns the names currently in the namespace, sorted.
func (s *DiskStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, types.IOError("scratch list", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Destroy removes the namespace directory. It fails if files remain.
func (s *DiskStore) Destroy() error {
	if err := os.Remove(s.dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return types.IOError("scratch destroy", err)
	}
	return nil
}

// Jobs lists the job namespaces under root.
func Jobs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, types.IOError("scratch jobs", err)
	}
	var jobs []string
	for _, e := range entries {
		if e.IsDir() {
			jobs = append(jobs, e.Name())
		}
	}
	return jobs, nil
}
