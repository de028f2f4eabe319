package alephzero

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect attaches a subscriber that copies frames out of the transport
// and forwards them to a channel, mirroring the gateway's discipline.
func collect(t *testing.T, rt *Runtime, topic string, init Init, iter Iter) (<-chan Packet, *Reader) {
	t.Helper()
	ch := make(chan Packet, 64)
	sub := rt.NewSubscriber(topic, init, iter, func(fr *FlatFrame) {
		pkt := fr.Packet()
		fr.Unlock()
		ch <- pkt
	})
	t.Cleanup(func() { sub.Close() })
	return ch, sub
}

func recvPacket(t *testing.T, ch <-chan Packet) Packet {
	t.Helper()
	select {
	case pkt := <-ch:
		return pkt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for packet")
		return Packet{}
	}
}

func expectNoPacket(t *testing.T, ch <-chan Packet) {
	t.Helper()
	select {
	case pkt := <-ch:
		t.Fatalf("unexpected packet: %q", pkt.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscriberOldestReplaysBacklog(t *testing.T) {
	rt := New(t.TempDir())
	pub := rt.NewPublisher("t")
	pub.Pub(NewPacket(nil, []byte("a")))
	pub.Pub(NewPacket(nil, []byte("b")))

	ch, _ := collect(t, rt, "t", InitOldest, IterNext)
	assert.Equal(t, []byte("a"), recvPacket(t, ch).Payload)
	assert.Equal(t, []byte("b"), recvPacket(t, ch).Payload)

	pub.Pub(NewPacket(nil, []byte("c")))
	assert.Equal(t, []byte("c"), recvPacket(t, ch).Payload)
}

func TestSubscriberAwaitNewSkipsBacklog(t *testing.T) {
	rt := New(t.TempDir())
	pub := rt.NewPublisher("t")
	pub.Pub(NewPacket(nil, []byte("old")))

	ch, _ := collect(t, rt, "t", InitAwaitNew, IterNext)
	expectNoPacket(t, ch)

	pub.Pub(NewPacket(nil, []byte("new")))
	assert.Equal(t, []byte("new"), recvPacket(t, ch).Payload)
}

func TestSubscriberMostRecentDeliversLatestThenNew(t *testing.T) {
	rt := New(t.TempDir())
	pub := rt.NewPublisher("t")
	pub.Pub(NewPacket(nil, []byte("a")))
	pub.Pub(NewPacket(nil, []byte("b")))

	ch, _ := collect(t, rt, "t", InitMostRecent, IterNext)
	assert.Equal(t, []byte("b"), recvPacket(t, ch).Payload)

	pub.Pub(NewPacket(nil, []byte("c")))
	assert.Equal(t, []byte("c"), recvPacket(t, ch).Payload)
}

func TestStandardHeadersCarrySequence(t *testing.T) {
	rt := New(t.TempDir())
	rt.NewPublisher("t").Pub(NewPacket(nil, []byte("x")))

	ch, _ := collect(t, rt, "t", InitOldest, IterNext)
	pkt := recvPacket(t, ch)

	seq, ok := pkt.Header(HeaderTransportSeq)
	require.True(t, ok)
	assert.Equal(t, "1", seq)
	_, ok = pkt.Header(HeaderTimeWall)
	assert.True(t, ok)
}

func TestReaderRequiresExistingPath(t *testing.T) {
	rt := New(t.TempDir())

	_, err := rt.NewReader("missing.a0", InitOldest, IterNext, func(*FlatFrame) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.a0")

	rt.NewWriter("present.a0", false).Write(NewPacket(nil, []byte("x")))
	rd, err := rt.NewReader("present.a0", InitOldest, IterNext, func(fr *FlatFrame) {})
	require.NoError(t, err)
	rd.Close()
}

func TestIterNewestSkipsToLatest(t *testing.T) {
	rt := New(t.TempDir())
	pub := rt.NewPublisher("t")

	// A slow consumer: the first callback parks until released, while the
	// publisher builds a backlog.
	release := make(chan struct{})
	got := make(chan Packet, 8)
	first := true
	sub := rt.NewSubscriber("t", InitAwaitNew, IterNewest, func(fr *FlatFrame) {
		pkt := fr.Packet()
		fr.Unlock()
		got <- pkt
		if first {
			first = false
			<-release
		}
	})
	defer sub.Close()

	pub.Pub(NewPacket(nil, []byte("p1")))
	assert.Equal(t, []byte("p1"), recvPacket(t, got).Payload)

	pub.Pub(NewPacket(nil, []byte("p2")))
	pub.Pub(NewPacket(nil, []byte("p3")))
	pub.Pub(NewPacket(nil, []byte("p4")))
	close(release)

	// The backlog collapses to the newest frame.
	assert.Equal(t, []byte("p4"), recvPacket(t, got).Payload)
	expectNoPacket(t, got)
}

func TestLogListenerLevelFloor(t *testing.T) {
	rt := New(t.TempDir())
	w := rt.NewWriter(LogPath("app"), false)
	w.Write(NewPacket([][2]string{{HeaderLogLevel, "DBG"}}, []byte("noise")))
	w.Write(NewPacket([][2]string{{HeaderLogLevel, "ERR"}}, []byte("boom")))
	w.Write(NewPacket(nil, []byte("no-level")))

	ch := make(chan Packet, 8)
	l := rt.NewLogListener("app", LevelWarn, InitOldest, IterNext, func(pkt Packet) {
		ch <- pkt
	})
	defer l.Close()

	assert.Equal(t, []byte("boom"), recvPacket(t, ch).Payload)
	// Packets without a level header always pass the floor.
	assert.Equal(t, []byte("no-level"), recvPacket(t, ch).Payload)
	expectNoPacket(t, ch)
}

func TestReaderCloseJoins(t *testing.T) {
	rt := New(t.TempDir())
	ch, sub := collect(t, rt, "t", InitAwaitNew, IterNext)

	done := make(chan struct{})
	go func() {
		sub.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not join the reader goroutine")
	}
	expectNoPacket(t, ch)
}
