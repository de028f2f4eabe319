package encoding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	enc := Encoders()["base64"]
	dec := Decoders()["base64"]

	cases := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte("hello world"),
		{0x00, 0xff, 0x10, 0x80, 0x7f},
	}
	for _, in := range cases {
		assert.Equal(t, in, dec(enc(in)))
	}
}

func TestBase64DecodeTolerant(t *testing.T) {
	dec := Decoders()["base64"]

	// Padding is optional.
	assert.Equal(t, []byte("A"), dec("QQ=="))
	assert.Equal(t, []byte("A"), dec("QQ"))

	// Decoding stops at the first byte outside the alphabet.
	assert.Equal(t, []byte("A"), dec("QQ!!rest-ignored"))

	// A lone trailing character carries too few bits to produce a byte.
	assert.Equal(t, []byte{}, dec("Q"))
	assert.Equal(t, []byte("AB"), dec("QUJ"))
}

func TestNoneIsIdentity(t *testing.T) {
	enc := Encoders()["none"]
	dec := Decoders()["none"]

	assert.Equal(t, "payload", enc([]byte("payload")))
	assert.Equal(t, []byte("payload"), dec("payload"))
}

func TestEmptyNameDefaultsToNone(t *testing.T) {
	enc, ok := Encoders()[""]
	require.True(t, ok)
	assert.Equal(t, "x", enc([]byte("x")))

	dec, ok := Decoders()[""]
	require.True(t, ok)
	assert.Equal(t, []byte("x"), dec("x"))
}
