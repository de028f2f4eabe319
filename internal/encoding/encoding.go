// internal/encoding/encoding.go
package encoding

import (
	"encoding/base64"
	"strings"
)

// Encoder transcodes outbound payload bytes into the string placed in a
// response frame.
type Encoder func([]byte) string

// Decoder transcodes the payload string of an inbound request into raw bytes.
type Decoder func(string) []byte

const base64Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func noneEncode(b []byte) string { return string(b) }

func noneDecode(s string) []byte { return []byte(s) }

func base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// base64Decode is deliberately forgiving: padding is optional, and decoding
// stops at the first byte outside the standard alphabet. Legacy clients send
// both padded and unpadded forms.
//
// The stop-at-first-invalid-byte rule is implemented by truncating the input
// up front, so the RawStdEncoding decode below only ever sees alphabet bytes
// and cannot fail on stray padding or trailing garbage.
func base64Decode(s string) []byte {
	if i := strings.IndexFunc(s, func(r rune) bool {
		return r >= 128 || !strings.ContainsRune(base64Alphabet, r)
	}); i >= 0 {
		s = s[:i]
	}
	// A single trailing character carries fewer than 8 bits and yields nothing.
	if len(s)%4 == 1 {
		s = s[:len(s)-1]
	}
	out, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil
	}
	return out
}

// Encoders maps codec names to response encoders. The empty name is the
// default and resolves to none.
func Encoders() map[string]Encoder {
	return map[string]Encoder{
		"":       noneEncode,
		"none":   noneEncode,
		"base64": base64Encode,
	}
}

// Decoders maps codec names to request decoders.
func Decoders() map[string]Decoder {
	return map[string]Decoder{
		"":       noneDecode,
		"none":   noneDecode,
		"base64": base64Decode,
	}
}
