// internal/api/handlers/ws_prpc.go
package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/encoding"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// prpcFrame adds the terminal marker to the packet frame shape.
type prpcFrame struct {
	Headers [][2]string `json:"headers"`
	Payload string      `json:"payload"`
	Done    bool        `json:"done"`
}

// prpcRelay forwards progressive replies to the connection. Under NEXT it
// paces like any other stream. Under NEWEST it keeps a single overwriting
// slot: the client always receives the latest reply at its own pace and
// never a backlog.
type prpcRelay struct {
	c    *wsbridge.Conn
	send func(string)
	enc  encoding.Encoder

	// NEWEST slot. Held only around slot reads/writes and the send
	// enqueue, never across a wait.
	mu          sync.Mutex
	pkt         *alephzero.Packet
	pktDone     bool
	readyToSend bool
}

func newPrpcRelay(c *wsbridge.Conn, enc encoding.Encoder) *prpcRelay {
	return &prpcRelay{c: c, send: c.BindSend(), enc: enc, readyToSend: true}
}

func (p *prpcRelay) doSend(pkt alephzero.Packet, done bool) {
	headers := pkt.Headers
	if headers == nil {
		headers = [][2]string{}
	}
	out, err := json.Marshal(prpcFrame{Headers: headers, Payload: p.enc(pkt.Payload), Done: done})
	if err != nil {
		p.c.End(websocket.CloseInternalServerErr, err.Error())
		return
	}
	p.send(string(out))
}

// sendNewestLocked flushes the slot. Callers hold p.mu.
func (p *prpcRelay) sendNewestLocked() {
	p.readyToSend = true
	if p.pkt == nil {
		return
	}
	p.doSend(*p.pkt, p.pktDone)
	p.readyToSend = p.c.Sched() == wsbridge.SchedImmediate
	p.pkt = nil
}

// sendNewest is the wake hook: each wake drains the latest held packet.
func (p *prpcRelay) sendNewest() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendNewestLocked()
}

// onReply runs on the progressive-RPC handler's goroutine.
func (p *prpcRelay) onReply(pkt alephzero.Packet, done bool) {
	if !p.c.Running() {
		return
	}

	if p.c.ReaderIter() == alephzero.IterNext {
		preSendCnt := p.c.WakeCnt()
		p.doSend(pkt, done)
		p.c.Wait(preSendCnt)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pkt = &pkt
	p.pktDone = done
	if p.readyToSend {
		p.sendNewestLocked()
	}
}

// Prpc handles GET /wsapi/prpc.
//
// Handshake:
//
//	{
//	    "topic": "...",               // required
//	    "iter": "NEXT",               // optional, NEXT | NEWEST
//	    "request_encoding": "none",   // optional, none | base64
//	    "response_encoding": "none",  // optional, none | base64
//	    "scheduler": "ON_DRAIN",      // optional, IMMEDIATE | ON_ACK | ON_DRAIN
//	    "packet": {...},              // the request packet
//	}
//
// Frames out: {"headers": [...], "payload": "...", "done": bool}. The
// connection is cancelled server-side when the socket closes.
func (h *WSHandler) Prpc(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "prpc", func(c *wsbridge.Conn, req *request.Message) error {
		if err := req.Require("topic"); err != nil {
			return err
		}

		client := h.Runtime.NewPrpcClient(req.Topic)
		connectionID := req.Pkt.ID
		c.SetCancel(func() { client.Cancel(connectionID) })

		relay := newPrpcRelay(c, req.ResponseEncoder)
		if c.ReaderIter() == alephzero.IterNewest {
			c.SetWakeHook(relay.sendNewest)
		}

		client.Connect(req.Pkt, relay.onReply)
		c.SetProducer(client)
		return nil
	})
}
