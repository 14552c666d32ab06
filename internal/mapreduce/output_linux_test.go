//go:build linux

package mapreduce

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkFilesystemsDetected(t *testing.T) {
	for _, fsType := range []uint32{0x6969, 0x517B, 0xFF534D42, 0xFE534D42} {
		assert.True(t, networkFS(fsType), "%#x", fsType)
	}
	// ext4, tmpfs, xfs, overlay
	for _, fsType := range []uint32{0xEF53, 0x01021994, 0x58465342, 0x794C7630} {
		assert.False(t, networkFS(fsType), "%#x", fsType)
	}
}

func TestOpenSharedOutputOnLocalDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "result")

	out, err := OpenSharedOutput(path)
	require.NoError(t, err)
	require.NoError(t, out.Close())
}
