// internal/api/handlers/ws_sub.go
package handlers

import (
	"net/http"

	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// Sub handles GET /wsapi/sub.
//
// Handshake:
//
//	{
//	    "topic": "...",               // required
//	    "init": "AWAIT_NEW",          // optional, OLDEST | MOST_RECENT | AWAIT_NEW, or a sequence floor
//	    "iter": "NEXT",               // optional, NEXT | NEWEST
//	    "response_encoding": "none",  // optional, none | base64
//	    "scheduler": "ON_DRAIN",      // optional, IMMEDIATE | ON_ACK | ON_DRAIN
//	}
//
// Frames out: {"headers": [...], "payload": "..."}.
func (h *WSHandler) Sub(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "sub", func(c *wsbridge.Conn, req *request.Message) error {
		if err := req.Require("topic"); err != nil {
			return err
		}
		sub := h.Runtime.NewSubscriber(req.Topic, c.ReaderInit(), c.ReaderIter(), readCallback(c, req.ResponseEncoder))
		c.SetProducer(sub)
		return nil
	})
}
