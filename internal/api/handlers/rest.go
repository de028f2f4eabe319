// internal/api/handlers/rest.go
package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/request"
	"github.com/alephzero/api/internal/wsbridge"
)

// RESTHandler serves the non-streaming /api endpoints. These are plain
// request/response translations into the messaging runtime; all streaming
// lives on the /wsapi routes.
type RESTHandler struct {
	Runtime *alephzero.Runtime
	Logger  *slog.Logger
}

func NewRESTHandler(rt *alephzero.Runtime, logger *slog.Logger) *RESTHandler {
	return &RESTHandler{Runtime: rt, Logger: logger}
}

// Ls handles GET /api/ls: the sorted list of registry paths.
func (h *RESTHandler) Ls(w http.ResponseWriter, r *http.Request) {
	out, err := json.Marshal(h.Runtime.Paths())
	if err != nil {
		respond(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

// Pub handles POST /api/pub.
//
//	{
//	    "topic": "...",                         // required
//	    "packet": {"headers": [...], "payload": "..."},  // payload required
//	    "request_encoding": "none",             // optional, none | base64
//	}
func (h *RESTHandler) Pub(w http.ResponseWriter, r *http.Request) {
	h.common(w, r, func(req *request.Message) error {
		if err := req.Require("topic"); err != nil {
			return err
		}
		if err := req.RequirePacketPayload(); err != nil {
			return err
		}

		h.Runtime.NewPublisher(req.Topic).Pub(req.Pkt)
		respond(w, http.StatusOK, "success")
		return nil
	})
}

// RPC handles POST /api/rpc: a one-shot RPC whose reply is returned as the
// HTTP response. The request waits until the server side answers or the
// request context ends (the client goes away or the router's timeout fires).
func (h *RESTHandler) RPC(w http.ResponseWriter, r *http.Request) {
	h.common(w, r, func(req *request.Message) error {
		if err := req.Require("topic"); err != nil {
			return err
		}
		if err := req.RequirePacketPayload(); err != nil {
			return err
		}

		client := h.Runtime.NewRpcClient(req.Topic)
		defer client.Close()

		replies := make(chan alephzero.Packet, 1)
		client.Send(req.Pkt, func(pkt alephzero.Packet) {
			select {
			case replies <- pkt:
			default:
			}
		})

		select {
		case pkt := <-replies:
			frame, err := marshalPacketFrame(pkt, req.ResponseEncoder)
			if err != nil {
				return err
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			io.WriteString(w, frame)
		case <-r.Context().Done():
		}
		return nil
	})
}

// Write handles POST /api/write.
//
//	{
//	    "path": "...",                          // required
//	    "standard_headers": false,              // optional
//	    "packet": {"headers": [...], "payload": "..."},  // payload required
//	    "request_encoding": "none",             // optional
//	}
func (h *RESTHandler) Write(w http.ResponseWriter, r *http.Request) {
	h.common(w, r, func(req *request.Message) error {
		if err := req.Require("path"); err != nil {
			return err
		}
		if err := req.RequirePacketPayload(); err != nil {
			return err
		}
		standardHeaders, err := req.MaybeBool("standard_headers")
		if err != nil {
			return err
		}

		h.Runtime.NewWriter(req.Path, standardHeaders).Write(req.Pkt)
		respond(w, http.StatusOK, "success")
		return nil
	})
}

// common reads and parses the body, runs impl, and maps any error to a
// 400 with the message as body.
func (h *RESTHandler) common(w http.ResponseWriter, r *http.Request, impl func(*request.Message) error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, wsbridge.MaxPayloadLength))
	if err != nil {
		respond(w, http.StatusBadRequest, err.Error())
		return
	}
	req, err := request.Parse(body)
	if err != nil {
		respond(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := impl(req); err != nil {
		respond(w, http.StatusBadRequest, err.Error())
	}
}

func respond(w http.ResponseWriter, status int, body string) {
	w.WriteHeader(status)
	io.WriteString(w, body)
}
