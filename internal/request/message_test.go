package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alephzero/api/internal/encoding"
)

func TestParseRejectsNonJSON(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
	assert.Equal(t, "Request must be json.", err.Error())
}

func TestParseRejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`["a", "b"]`))
	require.Error(t, err)
	assert.Equal(t, "Request must be a json object.", err.Error())

	_, err = Parse([]byte(`"ACK"`))
	require.Error(t, err)
	assert.Equal(t, "Request must be a json object.", err.Error())
}

func TestParseCommonFields(t *testing.T) {
	m, err := Parse([]byte(`{"topic": "t", "path": "p.a0"}`))
	require.NoError(t, err)
	assert.Equal(t, "t", m.Topic)
	assert.Equal(t, "p.a0", m.Path)
	require.NoError(t, m.Require("topic"))
	assert.EqualError(t, m.Require("missing"), "Request missing required field: missing")
}

func TestParsePacket(t *testing.T) {
	m, err := Parse([]byte(`{
		"packet": {
			"headers": [["k1", "v1"], ["k1", "v2"], ["k2", "v3"]],
			"payload": "data"
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, m.RequirePacketPayload())
	assert.Equal(t, [][2]string{{"k1", "v1"}, {"k1", "v2"}, {"k2", "v3"}}, m.Pkt.Headers)
	assert.Equal(t, []byte("data"), m.Pkt.Payload)
	assert.NotEmpty(t, m.Pkt.ID)
}

func TestParsePacketPayloadMissing(t *testing.T) {
	m, err := Parse([]byte(`{"packet": {"headers": []}}`))
	require.NoError(t, err)
	assert.EqualError(t, m.RequirePacketPayload(), "Request missing required field: /packet/payload")

	m, err = Parse([]byte(`{"topic": "t"}`))
	require.NoError(t, err)
	require.Error(t, m.RequirePacketPayload())
}

func TestParseMalformedHeaders(t *testing.T) {
	_, err := Parse([]byte(`{"packet": {"headers": [["only-key"]], "payload": ""}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/packet/headers")

	_, err = Parse([]byte(`{"packet": {"headers": "nope", "payload": ""}}`))
	require.Error(t, err)
}

func TestRequestEncoding(t *testing.T) {
	m, err := Parse([]byte(`{"packet": {"payload": "aGVsbG8="}, "request_encoding": "base64"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), m.Pkt.Payload)
}

func TestUnknownEncodingFails(t *testing.T) {
	_, err := Parse([]byte(`{"request_encoding": "rot13"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown value")

	_, err = Parse([]byte(`{"response_encoding": "rot13"}`))
	require.Error(t, err)
}

func TestResponseEncoderDefaultsToNone(t *testing.T) {
	m, err := Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "raw", m.ResponseEncoder([]byte("raw")))

	m, err = Parse([]byte(`{"response_encoding": "base64"}`))
	require.NoError(t, err)
	assert.Equal(t, "aGVsbG8=", m.ResponseEncoder([]byte("hello")))
}

func TestMaybeOption(t *testing.T) {
	m, err := Parse([]byte(`{"mode": "fast", "bad": 7}`))
	require.NoError(t, err)

	table := map[string]int{"fast": 1, "slow": 2}

	out := 0
	require.NoError(t, MaybeOption(m, "mode", table, &out))
	assert.Equal(t, 1, out)

	// Absent field leaves the default.
	out = 42
	require.NoError(t, MaybeOption(m, "absent", table, &out))
	assert.Equal(t, 42, out)

	// Non-string value is a format error.
	require.Error(t, MaybeOption(m, "bad", table, &out))
}

func TestMaybeBool(t *testing.T) {
	m, err := Parse([]byte(`{"standard_headers": true, "bad": "yes"}`))
	require.NoError(t, err)

	v, err := m.MaybeBool("standard_headers")
	require.NoError(t, err)
	assert.True(t, v)

	v, err = m.MaybeBool("absent")
	require.NoError(t, err)
	assert.False(t, v)

	_, err = m.MaybeBool("bad")
	require.Error(t, err)
}

func TestEncodersTableMatchesEncodingPackage(t *testing.T) {
	// The handshake must accept every codec name the encoding package
	// defines as a response_encoding.
	for name := range encoding.Encoders() {
		_, err := Parse([]byte(`{"response_encoding": "` + name + `"}`))
		require.NoError(t, err)
	}
}
