// internal/api/handlers/ws_read.go
package handlers

import (
	"net/http"

	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// Read handles GET /wsapi/read: tail a raw file-backed stream by registry
// path. Same options as /wsapi/sub, with "path" in place of "topic". A
// path that does not exist fails the handshake.
func (h *WSHandler) Read(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "read", func(c *wsbridge.Conn, req *request.Message) error {
		if err := req.Require("path"); err != nil {
			return err
		}
		reader, err := h.Runtime.NewReader(req.Path, c.ReaderInit(), c.ReaderIter(), readCallback(c, req.ResponseEncoder))
		if err != nil {
			return err
		}
		c.SetProducer(reader)
		return nil
	})
}
