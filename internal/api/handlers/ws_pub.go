// internal/api/handlers/ws_pub.go
package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// Pub handles GET /wsapi/pub: stream packets into a pub/sub topic. The
// first TEXT frame is the handshake and names the topic; every later TEXT
// frame carries a packet to publish.
//
//	// handshake
//	{"topic": "..."}
//	// then, repeatedly (each frame's own request_encoding decodes its payload)
//	{"packet": {"headers": [...], "payload": "..."}, "request_encoding": "none"}
//
// This route only flows inbound, so it has no scheduler; parse and
// require failures still close with 4000.
func (h *WSHandler) Pub(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", "route", "pub", "error", err)
		return
	}
	ws.SetReadLimit(wsbridge.MaxPayloadLength)

	conn := wsbridge.NewConn(h.State, ws, h.Logger.With("route", "pub"))
	defer conn.Close()

	// fail queues the close frame and keeps reading until the write pump's
	// close tears the socket down, so the deferred Close cannot drop the
	// close frame before it is written.
	fail := func(reason string) {
		conn.End(wsbridge.CloseProtocolError, reason)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}

	var pub *alephzero.Publisher
	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		req, err := request.Parse(msg)
		if err != nil {
			fail(err.Error())
			return
		}

		if pub == nil {
			if err := req.Require("topic"); err != nil {
				fail(err.Error())
				return
			}
			pub = h.Runtime.NewPublisher(req.Topic)
			continue
		}

		if err := req.RequirePacketPayload(); err != nil {
			fail(err.Error())
			return
		}
		pub.Pub(req.Pkt)
	}
}
