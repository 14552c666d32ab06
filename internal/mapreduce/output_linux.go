//go:build linux

package mapreduce

import (
	"fmt"

	"golang.org/x/sys/unix"

	"DistReduce/internal/types"
)

// statfs f_type values of network filesystems
const (
	nfsMagic  = 0x6969
	smbMagic  = 0x517B
	cifsMagic = 0xFF534D42
	smb2Magic = 0xFE534D42
)

func networkFS(fsType uint32) bool {
	switch fsType {
	case nfsMagic, smbMagic, cifsMagic, smb2Magic:
		return true
	}
	return false
}

func checkAppendAtomic(fd int, path string) error {
	var st unix.Statfs_t
	if err := unix.Fstatfs(fd, &st); err != nil {
		return types.IOError("statfs output", fmt.Errorf("%s: %w", path, err))
	}
	if fsType := uint32(st.Type); networkFS(fsType) {
		return types.ConfigError("open output",
			"%s is on a network filesystem (type %#x) where appends from several hosts are not atomic", path, fsType)
	}
	return nil
}
