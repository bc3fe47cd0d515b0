package fingerprint

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// Serialized form: each 32-bit code as 4 big-endian bytes, concatenated
// in sequence order, wrapped in standard base64 for text transport.
// There is no version marker; changing the generator preset is a
// breaking change for all stored fingerprints.

var (
	// ErrCorruptPayload reports a binary payload whose length is not a
	// multiple of 4. Decoding is strict: trailing bytes are never
	// silently dropped.
	ErrCorruptPayload = errors.New("fingerprint payload length is not a multiple of 4")

	// ErrBadEncoding reports malformed base64 text.
	ErrBadEncoding = errors.New("fingerprint text is not valid base64")
)

// EncodeCodes serializes codes as big-endian uint32s.
func EncodeCodes(codes []uint32) []byte {
	out := make([]byte, 4*len(codes))
	for i, c := range codes {
		binary.BigEndian.PutUint32(out[4*i:], c)
	}
	return out
}

// DecodeCodes parses a big-endian uint32 payload. A length that is not a
// multiple of 4 indicates truncation or corruption and is rejected.
func DecodeCodes(data []byte) ([]uint32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCorruptPayload, len(data))
	}
	codes := make([]uint32, len(data)/4)
	for i := range codes {
		codes[i] = binary.BigEndian.Uint32(data[4*i:])
	}
	return codes, nil
}

// EncodeText wraps EncodeCodes in standard base64, the form stored in
// databases and passed over the wire.
func EncodeText(codes []uint32) string {
	return base64.StdEncoding.EncodeToString(EncodeCodes(codes))
}

// DecodeText reverses EncodeText. Surrounding whitespace is tolerated;
// anything else malformed fails with ErrBadEncoding or
// ErrCorruptPayload.
func DecodeText(text string) ([]uint32, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEncoding, err)
	}
	return DecodeCodes(data)
}
