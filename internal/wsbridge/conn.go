package wsbridge

import (
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/request"
)

const (
	// MaxPayloadLength caps inbound frame size.
	MaxPayloadLength = 16 * 1024 * 1024

	// MaxBackpressure caps bytes queued for one socket. Overflow closes the
	// connection; it is the last safety valve under IMMEDIATE.
	MaxBackpressure = 16 * 1024 * 1024

	// writeWait bounds a single socket write to the peer.
	writeWait = 10 * time.Second

	// Close control frames carry at most 123 bytes of reason.
	maxCloseReason = 123
)

// CloseProtocolError is the close code for handshake and protocol
// violations.
const CloseProtocolError = 4000

// Conn is the per-WebSocket state: handshake progress, flow control
// counters and the deferred-task queue feeding the write pump.
type Conn struct {
	state *State
	ws    *websocket.Conn
	log   *slog.Logger

	// Handshake-written fields. Set on the read goroutine before the
	// producer starts; read-only afterwards.
	sched        Scheduler
	readerInit   alephzero.Init
	readerIter   alephzero.Iter
	readerSeqMin uint64
	wakeHook     func()
	producer     io.Closer
	cancel       func()

	init     bool // read goroutine only
	done     atomic.Bool
	wakeCnt  atomic.Int64
	buffered atomic.Int64

	queue *taskQueue
}

// NewConn registers a connection and starts its write pump. The caller
// owns the socket's read loop and must call Close when it exits.
func NewConn(state *State, ws *websocket.Conn, log *slog.Logger) *Conn {
	c := &Conn{
		state:      state,
		ws:         ws,
		log:        log,
		sched:      SchedOnDrain,
		readerInit: alephzero.InitAwaitNew,
		readerIter: alephzero.IterNext,
		queue:      newTaskQueue(),
	}
	state.add(c)
	go c.queue.run()
	if !state.Running() {
		c.Close()
	}
	return c
}

// Sched is the connection's flow control policy.
func (c *Conn) Sched() Scheduler { return c.sched }

// ReaderInit is the reader start position from the handshake.
func (c *Conn) ReaderInit() alephzero.Init { return c.readerInit }

// ReaderIter is the reader iteration mode from the handshake.
func (c *Conn) ReaderIter() alephzero.Iter { return c.readerIter }

// ReaderSeqMin is the lowest acceptable sequence number; frames at or
// below it are filtered by the stream adapter.
func (c *Conn) ReaderSeqMin() uint64 { return c.readerSeqMin }

// Running reports whether the gateway is still serving.
func (c *Conn) Running() bool { return c.state.Running() }

// WakeCnt snapshots the wake counter. Producers capture it before a send
// so a wake landing between the send and the wait is not lost.
func (c *Conn) WakeCnt() int64 { return c.wakeCnt.Load() }

// SetProducer hands the library-side producer to the connection. Close
// drops it, joining its goroutine. A connection has at most one producer.
func (c *Conn) SetProducer(p io.Closer) { c.producer = p }

// SetCancel installs a cancellation hook invoked at close, before the
// producer is dropped. Used by progressive RPC.
func (c *Conn) SetCancel(fn func()) { c.cancel = fn }

// SetWakeHook installs a hook invoked on every wake. Used by progressive
// RPC NEWEST mode to flush the latest held packet.
func (c *Conn) SetWakeHook(fn func()) { c.wakeHook = fn }

// OnText handles one inbound TEXT frame. The first frame is the handshake;
// afterwards only "ACK" under ON_ACK is legal.
func (c *Conn) OnText(msg []byte, onHandshake func(*request.Message) error) {
	if !c.init {
		req, err := request.Parse(msg)
		if err == nil {
			err = c.loadCommonOptions(req)
		}
		if err == nil {
			err = onHandshake(req)
		}
		if err != nil {
			c.End(CloseProtocolError, err.Error())
			return
		}
		c.init = true
		return
	}

	if c.sched == SchedOnAck && string(msg) == "ACK" {
		c.Wake()
		return
	}

	c.End(CloseProtocolError, "Handshake only allowed once per websocket.")
}

// loadCommonOptions resolves the handshake fields shared by every route.
// A numeric init is a sequence floor: the reader starts at the position
// implied by the iteration mode and the adapter filters by sequence.
func (c *Conn) loadCommonOptions(req *request.Message) error {
	if err := request.MaybeOption(req, "scheduler", SchedulerOptions(), &c.sched); err != nil {
		return err
	}
	if err := request.MaybeOption(req, "iter", IterOptions(), &c.readerIter); err != nil {
		return err
	}

	v, ok := req.Raw["init"]
	if !ok {
		return nil
	}
	if seq, isNum := v.(float64); isNum {
		c.readerSeqMin = uint64(seq)
		switch c.readerIter {
		case alephzero.IterNext:
			c.readerInit = alephzero.InitOldest
		case alephzero.IterNewest:
			c.readerInit = alephzero.InitMostRecent
		}
		return nil
	}
	return request.MaybeOption(req, "init", InitOptions(), &c.readerInit)
}

// Send queues a TEXT frame for the write pump. Safe from any goroutine.
// Under ON_DRAIN the pump wakes the producer once the frame is on the wire
// and nothing else is queued.
func (c *Conn) Send(msg string) {
	n := int64(len(msg))
	if c.buffered.Add(n) > MaxBackpressure {
		// Socket-layer overflow. The stream cannot recover; treat as a
		// normal close.
		c.buffered.Add(-n)
		c.log.Warn("websocket backpressure limit exceeded")
		c.queue.push(func() { c.Close() })
		return
	}

	c.queue.push(func() {
		if c.done.Load() || !c.state.Running() {
			c.buffered.Add(-n)
			return
		}
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			c.buffered.Add(-n)
			c.log.Debug("websocket write failed", "error", err)
			c.Close()
			return
		}
		if c.buffered.Add(-n) == 0 && c.sched == SchedOnDrain {
			c.Wake()
		}
	})
}

// End queues a close frame with a code and reason, then tears down the
// connection. Safe from any goroutine.
func (c *Conn) End(code int, reason string) {
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	c.queue.push(func() {
		if c.done.Load() || !c.state.Running() {
			return
		}
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			c.log.Debug("websocket close write failed", "error", err)
		}
		c.Wake()
		c.Close()
	})
}

// BindSend returns a send closure producer callbacks can call without
// holding a reference to the socket.
func (c *Conn) BindSend() func(string) { return c.Send }

// BindEnd returns an end closure for producer callbacks.
func (c *Conn) BindEnd() func(int, string) { return c.End }

// Wake releases a producer blocked in Wait: bumps the wake counter,
// broadcasts, and fires the wake hook.
func (c *Conn) Wake() {
	c.wakeCnt.Add(1)
	c.state.notify()
	if hook := c.wakeHook; hook != nil {
		hook()
	}
}

// Wait blocks the producer until the connection is ready for the next
// event: the wake counter moved past the pre-send snapshot, the
// connection closed, or the gateway shut down. IMMEDIATE never waits.
// Must not be called from the write pump or the read loop.
func (c *Conn) Wait(preSendCnt int64) {
	if c.sched == SchedImmediate {
		return
	}
	s := c.state
	s.mu.Lock()
	for s.running.Load() && !c.done.Load() && preSendCnt >= c.wakeCnt.Load() {
		s.cv.Wait()
	}
	s.mu.Unlock()
}

// Close tears the connection down exactly once: marks it done, cancels
// progressive RPC, deregisters, releases waiting producers, closes the
// socket and joins the producer. Safe from any goroutine, including the
// write pump.
func (c *Conn) Close() {
	if !c.done.CompareAndSwap(false, true) {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.state.remove(c)
	c.state.notify()
	c.queue.stop()
	if c.ws != nil {
		c.ws.Close()
	}
	if c.producer != nil {
		c.producer.Close()
	}
}
