package alephzero

import (
	"sort"
	"sync"
)

// Reader tails the log of one topic and delivers frames to a callback on a
// goroutine it owns. The callback receives a transport-locked frame view;
// it must copy what it needs and may then release the lock with
// FlatFrame.Unlock before blocking. Close joins the delivery goroutine.
type Reader struct {
	t    *Topic
	iter Iter

	stopped bool // guarded by t.mu
	done    chan struct{}
	once    sync.Once
}

// NewReader opens a reader over an existing registry path. It fails if the
// path is not in the registry, matching the library's behavior of refusing
// to read a file that does not exist. A path opened by any writer,
// publisher or subscriber is in the registry even before its first write.
func (r *Runtime) NewReader(path string, init Init, iter Iter, cb func(*FlatFrame)) (*Reader, error) {
	t, ok := r.lookupTopic(path)
	if !ok {
		return nil, errNoTopic(path)
	}
	return newReaderOn(t, init, iter, cb), nil
}

// NewSubscriber opens a reader over a pub/sub topic, creating the topic if
// it does not exist yet.
func (r *Runtime) NewSubscriber(topic string, init Init, iter Iter, cb func(*FlatFrame)) *Reader {
	return newReaderOn(r.ensureTopic(PubsubPath(topic)), init, iter, cb)
}

// NewLogListener tails a log topic, delivering copied packets at or above
// the level floor.
func (r *Runtime) NewLogListener(topic string, level LogLevel, init Init, iter Iter, cb func(Packet)) *Reader {
	return newReaderOn(r.ensureTopic(LogPath(topic)), init, iter, func(fr *FlatFrame) {
		pkt := fr.Packet()
		fr.Unlock()
		if packetLevel(pkt) < level {
			return
		}
		cb(pkt)
	})
}

func newReaderOn(t *Topic, init Init, iter Iter, cb func(*FlatFrame)) *Reader {
	rd := &Reader{t: t, iter: iter, done: make(chan struct{})}
	// Return only once the starting cursor is resolved, so frames written
	// after the constructor returns are never skipped by AWAIT_NEW.
	attached := make(chan struct{})
	go rd.run(init, cb, attached)
	<-attached
	return rd
}

// Close stops delivery and joins the reader goroutine. Any in-flight
// callback must return before Close does; callbacks blocked in a flow
// control wait have to be released first.
func (rd *Reader) Close() error {
	rd.once.Do(func() {
		rd.t.mu.Lock()
		rd.stopped = true
		rd.t.cv.Broadcast()
		rd.t.mu.Unlock()
	})
	<-rd.done
	return nil
}

func (rd *Reader) run(init Init, cb func(*FlatFrame), attached chan<- struct{}) {
	defer close(rd.done)

	t := rd.t
	t.mu.Lock()
	defer t.mu.Unlock()

	// Resolve the starting cursor under the transport lock.
	var cursor uint64
	switch init {
	case InitOldest:
		cursor = 1
		if len(t.frames) > 0 {
			cursor = t.frames[0].seq
		}
	case InitMostRecent:
		cursor = t.nextSeq
		if len(t.frames) > 0 {
			cursor = t.frames[len(t.frames)-1].seq
		}
	case InitAwaitNew:
		cursor = t.nextSeq
	}
	close(attached)

	for {
		if rd.stopped {
			return
		}
		f := rd.next(cursor)
		if f == nil {
			t.cv.Wait()
			continue
		}
		cursor = f.seq + 1

		fr := &FlatFrame{t: t, seq: f.seq, pkt: &f.pkt, locked: true}
		cb(fr)
		if !fr.locked {
			// The callback released the transport lock; reacquire before
			// touching the log again.
			t.mu.Lock()
		}
	}
}

// next picks the frame to deliver for the current cursor, or nil if the
// reader is caught up. Callers hold t.mu.
func (rd *Reader) next(cursor uint64) *frame {
	frames := rd.t.frames
	i := sort.Search(len(frames), func(j int) bool { return frames[j].seq >= cursor })
	if i >= len(frames) {
		return nil
	}
	if rd.iter == IterNewest {
		return &frames[len(frames)-1]
	}
	return &frames[i]
}
