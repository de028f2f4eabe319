// internal/api/handlers/ws_log.go
package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// Log handles GET /wsapi/log: tail a log topic with a level floor.
//
// Handshake adds "level" (DBG | INFO | WARN | ERR | CRIT, default INFO) to
// the /wsapi/sub options. Frames out: {"headers": [...], "payload": "..."}.
func (h *WSHandler) Log(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "log", func(c *wsbridge.Conn, req *request.Message) error {
		if err := req.Require("topic"); err != nil {
			return err
		}

		level := alephzero.LevelInfo
		if err := request.MaybeOption(req, "level", alephzero.LogLevels(), &level); err != nil {
			return err
		}

		enc := req.ResponseEncoder
		send := c.BindSend()
		listener := h.Runtime.NewLogListener(req.Topic, level, c.ReaderInit(), c.ReaderIter(), func(pkt alephzero.Packet) {
			if !c.Running() {
				return
			}
			preSendCnt := c.WakeCnt()
			frame, err := marshalPacketFrame(pkt, enc)
			if err != nil {
				c.End(websocket.CloseInternalServerErr, err.Error())
				return
			}
			send(frame)
			c.Wait(preSendCnt)
		})
		c.SetProducer(listener)
		return nil
	})
}
