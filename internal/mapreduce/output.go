package mapreduce

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"DistReduce/internal/types"
)

// SharedOutput is the one file every reducer of every rank appends to. It is
// opened O_APPEND and each line goes out in a single write(2), so the kernel
// positions every line at the current end of file and lines from concurrent
// appenders never interleave.
//
// That holds only on a filesystem one kernel serves: local disk, or a
// cluster filesystem with atomic append. NFS and SMB clients emulate
// O_APPEND and ranks on different hosts can overwrite each other's lines,
// so on Linux OpenSharedOutput refuses them.
type SharedOutput struct {
	path string
	fd   int
}

// ResetSharedOutput creates path, or truncates it if it exists.
func ResetSharedOutput(path string) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC, 0644)
	if err != nil {
		return types.IOError("reset output", fmt.Errorf("%s: %w", path, err))
	}
	return unix.Close(fd)
}

// OpenSharedOutput opens path for appending, creating it if needed.
func OpenSharedOutput(path string) (*SharedOutput, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_APPEND|unix.O_CLOEXEC, 0644)
	if err != nil {
		return nil, types.IOError("open output", fmt.Errorf("%s: %w", path, err))
	}
	if err := checkAppendAtomic(fd, path); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &SharedOutput{path: path, fd: fd}, nil
}

// Append writes line, which must already end in a newline.
func (o *SharedOutput) Append(line []byte) error {
	for {
		n, err := unix.Write(o.fd, line)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return types.IOError("append output", err)
		}
		if n != len(line) {
			return types.IOError("append output", fmt.Errorf("short write %d of %d bytes", n, len(line)))
		}
		return nil
	}
}

func (o *SharedOutput) Path() string {
	return o.path
}

func (o *SharedOutput) Close() error {
	if err := unix.Close(o.fd); err != nil {
		return types.IOError("close output", err)
	}
	return nil
}
