package alephzero

import (
	"strconv"
	"sync"
	"time"
)

// frame is one entry in a topic's append-only log. Sequence numbers start
// at 1 and are assigned under the transport lock.
type frame struct {
	seq uint64
	pkt Packet
}

// Topic is the in-memory transport backing one registry path.
type Topic struct {
	mu     sync.Mutex
	cv     *sync.Cond
	frames []frame
	// nextSeq is the sequence number the next written frame receives.
	nextSeq uint64
}

func newTopic() *Topic {
	t := &Topic{nextSeq: 1}
	t.cv = sync.NewCond(&t.mu)
	return t
}

// write appends a packet, assigns its sequence number and wakes readers.
// The packet's header slice is copied so the caller may reuse its own.
func (t *Topic) write(pkt Packet, standardHeaders bool) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	seq := t.nextSeq
	t.nextSeq++

	headers := make([][2]string, 0, len(pkt.Headers)+2)
	headers = append(headers, pkt.Headers...)
	if standardHeaders {
		headers = append(headers,
			[2]string{HeaderTimeWall, time.Now().UTC().Format(time.RFC3339Nano)},
			[2]string{HeaderTransportSeq, strconv.FormatUint(seq, 10)},
		)
	}
	pkt.Headers = headers

	t.frames = append(t.frames, frame{seq: seq, pkt: pkt})
	t.cv.Broadcast()
	return seq
}

// FlatFrame is a transport-locked view of one frame. It is valid only while
// the transport lock is held: copy the packet out with Packet, then release
// the lock with Unlock before doing anything that can block. The reader
// reacquires the lock when the callback returns.
type FlatFrame struct {
	t      *Topic
	seq    uint64
	pkt    *Packet
	locked bool
}

// Seq is the frame's transport sequence number.
func (f *FlatFrame) Seq() uint64 { return f.seq }

// Packet copies the frame's packet out of the transport.
func (f *FlatFrame) Packet() Packet { return f.pkt.clone() }

// Unlock releases the transport lock early. Idempotent.
func (f *FlatFrame) Unlock() {
	if !f.locked {
		return
	}
	f.locked = false
	f.t.mu.Unlock()
}
