package relay

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConnRefused(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "unix", Err: syscall.ECONNREFUSED}
	assert.True(t, isConnRefused(refused))

	denied := &net.OpError{Op: "dial", Net: "unix", Err: os.ErrPermission}
	assert.False(t, isConnRefused(denied), "permission errors must not mark a socket stale")

	assert.False(t, isConnRefused(os.ErrNotExist))
	assert.False(t, isConnRefused(nil))
}

func TestSelect_ReclaimsStaleSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "relay.sock")

	// Leave a socket file behind with no listener, as a crashed process
	// would.
	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: socket, Net: "unix"})
	require.NoError(t, err)
	ln.SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())
	_, err = os.Stat(socket)
	require.NoError(t, err, "stale socket file should still exist")

	s := Select(context.Background(), Options{ClusterSocket: socket}, (&envelopeRecorder{}).handle)
	t.Cleanup(func() { _ = s.Close() })

	assert.Equal(t, ClusterLocal, s.State())

	// The reclaimed socket accepts members again.
	member := Select(context.Background(), Options{ClusterSocket: socket}, (&envelopeRecorder{}).handle)
	t.Cleanup(func() { _ = member.Close() })
	assert.Equal(t, ClusterLocal, member.State())
}
