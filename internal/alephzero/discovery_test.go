package alephzero

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func watchPaths(t *testing.T, rt *Runtime, pattern string) <-chan string {
	t.Helper()
	ch := make(chan string, 16)
	d, err := rt.NewDiscovery(pattern, func(abspath string) { ch <- abspath })
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return ch
}

func recvPath(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for discovery")
		return ""
	}
}

func TestDiscoveryEmitsExistingAndNew(t *testing.T) {
	root := "/data/a0"
	rt := New(root)
	rt.NewPublisher("pre/existing").Pub(NewPacket(nil, []byte("x")))

	ch := watchPaths(t, rt, filepath.Join(root, "**/*.pubsub.a0"))
	assert.Equal(t, filepath.Join(root, "pre/existing.pubsub.a0"), recvPath(t, ch))

	rt.NewPublisher("later").Pub(NewPacket(nil, []byte("y")))
	assert.Equal(t, filepath.Join(root, "later.pubsub.a0"), recvPath(t, ch))
}

func TestDiscoveryEmitsEachPathOnce(t *testing.T) {
	root := "/data/a0"
	rt := New(root)

	ch := watchPaths(t, rt, filepath.Join(root, "**/*.pubsub.a0"))

	pub := rt.NewPublisher("t")
	pub.Pub(NewPacket(nil, []byte("a")))
	pub.Pub(NewPacket(nil, []byte("b")))
	rt.NewPublisher("t") // reopening must not re-announce

	assert.Equal(t, filepath.Join(root, "t.pubsub.a0"), recvPath(t, ch))
	select {
	case p := <-ch:
		t.Fatalf("duplicate discovery: %s", p)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDiscoveryFiltersByProtocol(t *testing.T) {
	root := "/data/a0"
	rt := New(root)

	ch := watchPaths(t, rt, filepath.Join(root, "**/*.rpc.a0"))

	rt.NewPublisher("noise").Pub(NewPacket(nil, []byte("x")))
	rt.ServeRPC("svc", func(req Packet) Packet { return req })

	assert.Equal(t, filepath.Join(root, "svc.rpc.a0"), recvPath(t, ch))
}

func TestDiscoveryRejectsBadPattern(t *testing.T) {
	rt := New("/data/a0")
	_, err := rt.NewDiscovery("/data/a0/[", func(string) {})
	require.Error(t, err)
}

func TestDiscoveryCloseJoins(t *testing.T) {
	rt := New("/data/a0")
	d, err := rt.NewDiscovery("/data/a0/**", func(string) {})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		d.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not join the discovery goroutine")
	}
}
