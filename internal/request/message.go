// internal/request/message.go
//
// Parsing for the JSON options object clients send as the first TEXT frame
// of a WebSocket stream, and as the body of the REST endpoints. Error text
// here is client-visible (it becomes the close reason of a failed
// handshake) and matches what legacy clients already expect.
package request

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/alephzero/api/internal/alephzero"
	"github.com/alephzero/api/internal/encoding"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is a parsed request with the commonly used fields extracted.
type Message struct {
	// Raw is the decoded JSON object, for fields not extracted below.
	Raw map[string]interface{}

	Path  string
	Topic string

	// Pkt is composed from packet.headers and packet.payload, with the
	// payload already run through the request decoder.
	Pkt alephzero.Packet

	// ResponseEncoder transcodes outbound payload bytes per the request's
	// response_encoding.
	ResponseEncoder encoding.Encoder
}

// Parse decodes and validates a request message.
func Parse(data []byte) (*Message, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New("Request must be json.")
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, errors.New("Request must be a json object.")
	}

	m := &Message{Raw: obj}

	var err error
	if m.Path, err = maybeString(obj, "path"); err != nil {
		return nil, err
	}
	if m.Topic, err = maybeString(obj, "topic"); err != nil {
		return nil, err
	}

	headers, payload, err := packetFields(obj)
	if err != nil {
		return nil, err
	}

	decoder := encoding.Decoders()[""]
	if err := MaybeOption(m, "request_encoding", encoding.Decoders(), &decoder); err != nil {
		return nil, err
	}
	m.ResponseEncoder = encoding.Encoders()[""]
	if err := MaybeOption(m, "response_encoding", encoding.Encoders(), &m.ResponseEncoder); err != nil {
		return nil, err
	}

	m.Pkt = alephzero.NewPacket(headers, decoder(payload))
	return m, nil
}

// Require fails unless the field is present.
func (m *Message) Require(field string) error {
	if _, ok := m.Raw[field]; !ok {
		return fmt.Errorf("Request missing required field: %s", field)
	}
	return nil
}

// RequirePacketPayload fails unless packet.payload is present.
func (m *Message) RequirePacketPayload() error {
	if pkt, ok := m.Raw["packet"].(map[string]interface{}); ok {
		if _, ok := pkt["payload"]; ok {
			return nil
		}
	}
	return errors.New("Request missing required field: /packet/payload")
}

// MaybeOption resolves an optional enumerated field against an option
// table. Absent fields and empty strings leave out untouched; unknown
// values fail.
func MaybeOption[T any](m *Message, field string, options map[string]T, out *T) error {
	v, ok := m.Raw[field]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return badFieldFormat(field)
	}
	if s == "" {
		return nil
	}
	val, ok := options[s]
	if !ok {
		return fmt.Errorf("Request has unknown value for field: %s  value: %s", field, s)
	}
	*out = val
	return nil
}

// MaybeBool reads an optional boolean field.
func (m *Message) MaybeBool(field string) (bool, error) {
	v, ok := m.Raw[field]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, badFieldFormat(field)
	}
	return b, nil
}

func maybeString(obj map[string]interface{}, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", badFieldFormat(field)
	}
	return s, nil
}

func packetFields(obj map[string]interface{}) ([][2]string, string, error) {
	v, ok := obj["packet"]
	if !ok {
		return nil, "", nil
	}
	pkt, ok := v.(map[string]interface{})
	if !ok {
		return nil, "", badFieldFormat("packet")
	}

	var headers [][2]string
	if hv, ok := pkt["headers"]; ok {
		list, ok := hv.([]interface{})
		if !ok {
			return nil, "", badFieldFormat("/packet/headers")
		}
		for _, entry := range list {
			pair, ok := entry.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, "", badFieldFormat("/packet/headers")
			}
			k, kok := pair[0].(string)
			val, vok := pair[1].(string)
			if !kok || !vok {
				return nil, "", badFieldFormat("/packet/headers")
			}
			headers = append(headers, [2]string{k, val})
		}
	}

	payload, err := maybeString(pkt, "payload")
	if err != nil {
		return nil, "", badFieldFormat("/packet/payload")
	}
	return headers, payload, nil
}

func badFieldFormat(field string) error {
	return fmt.Errorf("Request field has incorrect format. field: %s", field)
}
