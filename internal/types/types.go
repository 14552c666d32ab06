package types

import "fmt"

// KeyValue is one record emitted by a map function or produced by a reduce
// function. Keys and values are whitespace-free text; keys order bytewise.
type KeyValue struct {
	Key   string
	Value string
}

// ByKey sorts records ascending by key.
type ByKey []KeyValue

func (a ByKey) Len() int           { return len(a) }
func (a ByKey) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ByKey) Less(i, j int) bool { return a[i].Key < a[j].Key }

// ByteRange is a word-aligned slice [Start, Start+Length) of the source file.
type ByteRange struct {
	Start  int64
	Length int64
}

// End returns the first offset past the range.
func (r ByteRange) End() int64 {
	return r.Start + r.Length
}

func (r ByteRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End())
}

// Role is fixed once per process at startup.
type Role int

const (
	RoleCoordinator Role = iota
	RoleWorker
)

// CoordinatorRank is always the rank that plans and distributes work.
const CoordinatorRank = 0

// RoleOf returns the role of the process with the given rank.
func RoleOf(rank int) Role {
	if rank == CoordinatorRank {
		return RoleCoordinator
	}
	return RoleWorker
}

func (r Role) String() string {
	switch r {
	case RoleCoordinator:
		return "coordinator"
	case RoleWorker:
		return "worker"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// IterationTable maps a rank to the number of intermediate files it wrote.
// Index is the rank.
type IterationTable []int

// Total returns the number of intermediate files across all ranks.
func (t IterationTable) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Partitions returns the partition ids owned by rank when partitions
// 0..partitionCount-1 are striped across worldSize ranks.
func Partitions(rank, worldSize, partitionCount int) []int {
	var ids []int
	for id := rank; id < partitionCount; id += worldSize {
		ids = append(ids, id)
	}
	return ids
}
