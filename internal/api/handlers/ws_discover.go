// internal/api/handlers/ws_discover.go
package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// discoverFrame reports one discovered topic path.
type discoverFrame struct {
	Abspath string `json:"abspath"`
	Relpath string `json:"relpath"`
	Topic   string `json:"topic"`
}

// Discover handles GET /wsapi/discover: watch the registry for topics of a
// protocol matching a glob.
//
// Handshake:
//
//	{
//	    "protocol": "pubsub",     // required, file | cfg | log | prpc | pubsub | rpc
//	    "topic": "**/*",          // required, may be a glob
//	    "scheduler": "ON_DRAIN",  // optional
//	}
//
// Frames out: {"abspath": ..., "relpath": ..., "topic": ...}, where topic
// is the slice of relpath matching the protocol template's {topic}
// placeholder.
func (h *WSHandler) Discover(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "discover", func(c *wsbridge.Conn, req *request.Message) error {
		if err := req.Require("protocol"); err != nil {
			return err
		}
		if err := req.Require("topic"); err != nil {
			return err
		}

		tmpl := alephzero.TopicPlaceholder
		if err := request.MaybeOption(req, "protocol", alephzero.ProtocolTemplates(), &tmpl); err != nil {
			return err
		}

		root := h.Runtime.Root()
		pattern := filepath.Join(root, alephzero.TopicPath(tmpl, req.Topic))
		tmplKeyIdx := strings.Index(tmpl, alephzero.TopicPlaceholder)
		suffixLen := len(tmpl) - tmplKeyIdx - len(alephzero.TopicPlaceholder)

		send := c.BindSend()
		disc, err := h.Runtime.NewDiscovery(pattern, func(abspath string) {
			if !c.Running() {
				return
			}

			relpath, err := filepath.Rel(root, abspath)
			if err != nil {
				return
			}
			topic := relpath
			if end := len(relpath) - suffixLen; end >= tmplKeyIdx {
				topic = relpath[tmplKeyIdx:end]
			}

			preSendCnt := c.WakeCnt()
			out, err := json.Marshal(discoverFrame{Abspath: abspath, Relpath: relpath, Topic: topic})
			if err != nil {
				return
			}
			send(string(out))

			c.Wait(preSendCnt)
		})
		if err != nil {
			return err
		}
		c.SetProducer(disc)
		return nil
	})
}
