// Package alephzero is an in-process implementation of the AlephZero
// messaging runtime: topics are append-only sequenced logs addressed by a
// relative path under a root, with pub/sub, raw readers, log listeners,
// RPC / progressive-RPC clients, and topic discovery layered on top.
//
// Producers (Subscriber, Reader, LogListener, PrpcClient, Discovery) deliver
// events on a goroutine they own. Callbacks for one producer are serialized:
// the next event is not delivered until the previous callback returns.
// Callbacks are allowed to block.
package alephzero

import "github.com/google/uuid"

// Well-known header keys. Writers configured with standard headers attach
// the wall-time and transport-sequence keys; log packets carry the level key.
const (
	HeaderTimeWall     = "a0_time_wall"
	HeaderTransportSeq = "a0_transport_seq"
	HeaderLogLevel     = "a0_log_level"
)

// Packet is a single message: an identifier, a header multimap (ordered list
// of key/value pairs, duplicate keys allowed) and an opaque payload.
type Packet struct {
	ID      string
	Headers [][2]string
	Payload []byte
}

// NewPacket builds a packet with a fresh unique ID.
func NewPacket(headers [][2]string, payload []byte) Packet {
	return Packet{
		ID:      uuid.NewString(),
		Headers: headers,
		Payload: payload,
	}
}

// Header returns the first value for key.
func (p Packet) Header(key string) (string, bool) {
	for _, h := range p.Headers {
		if h[0] == key {
			return h[1], true
		}
	}
	return "", false
}

// clone deep-copies the packet so callers can retain it after the transport
// lock is released.
func (p Packet) clone() Packet {
	out := Packet{ID: p.ID}
	if p.Headers != nil {
		out.Headers = make([][2]string, len(p.Headers))
		copy(out.Headers, p.Headers)
	}
	if p.Payload != nil {
		out.Payload = make([]byte, len(p.Payload))
		copy(out.Payload, p.Payload)
	}
	return out
}
