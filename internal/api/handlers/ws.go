// internal/api/handlers/ws.go
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/encoding"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// The router's CORS policy admits every origin; the upgrader likewise
// accepts any Origin header.
var upgrader = websocket.Upgrader{
	ReadBufferSize:    4096,
	WriteBufferSize:   4096,
	EnableCompression: true,
	CheckOrigin:       func(*http.Request) bool { return true },
}

// WSHandler serves the /wsapi streaming routes. Each route performs a
// one-shot JSON handshake, attaches a runtime producer to the connection,
// and relays produced events as JSON frames under the connection's flow
// control policy.
type WSHandler struct {
	State   *wsbridge.State
	Runtime *alephzero.Runtime
	Logger  *slog.Logger
}

func NewWSHandler(state *wsbridge.State, rt *alephzero.Runtime, logger *slog.Logger) *WSHandler {
	return &WSHandler{State: state, Runtime: rt, Logger: logger}
}

// serve upgrades the request and runs the read loop. Non-TEXT frames are
// ignored; TEXT frames feed the handshake / ACK state machine. The loop
// exits when the peer goes away or the connection is ended, and tears the
// connection down on the way out.
func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, route string, onHandshake func(*wsbridge.Conn, *request.Message) error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Error("websocket upgrade failed", "route", route, "error", err)
		return
	}
	ws.SetReadLimit(wsbridge.MaxPayloadLength)

	conn := wsbridge.NewConn(h.State, ws, h.Logger.With("route", route))
	defer conn.Close()

	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		conn.OnText(msg, func(req *request.Message) error {
			return onHandshake(conn, req)
		})
	}
}

// packetFrame is the outbound frame shape of /wsapi/sub, /wsapi/read and
// /wsapi/log.
type packetFrame struct {
	Headers [][2]string `json:"headers"`
	Payload string      `json:"payload"`
}

func marshalPacketFrame(pkt alephzero.Packet, enc encoding.Encoder) (string, error) {
	headers := pkt.Headers
	if headers == nil {
		headers = [][2]string{}
	}
	out, err := json.Marshal(packetFrame{Headers: headers, Payload: enc(pkt.Payload)})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// readCallback builds the producer callback shared by /wsapi/sub and
// /wsapi/read. It runs on the producer's goroutine: copy the frame out of
// the transport, release the transport lock, serialize, send, then pace.
func readCallback(c *wsbridge.Conn, enc encoding.Encoder) func(*alephzero.FlatFrame) {
	send := c.BindSend()
	end := c.BindEnd()
	return func(fr *alephzero.FlatFrame) {
		if !c.Running() {
			return
		}

		// Skip frames at or below the requested sequence floor.
		if fr.Seq() <= c.ReaderSeqMin() {
			return
		}

		// Copy out of the transport; the view dies with the lock.
		pkt := fr.Packet()
		fr.Unlock()

		// Snapshot before the send so a wake that lands before the wait is
		// not lost.
		preSendCnt := c.WakeCnt()

		frame, err := marshalPacketFrame(pkt, enc)
		if err != nil {
			end(websocket.CloseInternalServerErr, err.Error())
			return
		}
		send(frame)

		c.Wait(preSendCnt)
	}
}
