package proxyio

import (
	"fmt"
	"io"
	"unicode/utf8"
)

// maxOctetString is the largest payload a fixed-length-prefixed octet
// string can carry: the length octet is a single byte.
const maxOctetString = 255

// WriteOctetString writes a one-octet length prefix L followed by L bytes
// of payload, as used by SOCKS5 for domain names, usernames, passwords, and
// the authentication methods list. payload must be at most 255 bytes.
func WriteOctetString(w io.Writer, payload []byte) error {
	if len(payload) > maxOctetString {
		return fmt.Errorf("proxyio: payload of %d bytes exceeds %d-byte limit", len(payload), maxOctetString)
	}
	buf := make([]byte, 1+len(payload))
	buf[0] = byte(len(payload))
	copy(buf[1:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadOctetString reads a one-octet length prefix L, then exactly L bytes,
// returning the payload. A zero-length payload is valid input to this
// codec; callers that require non-empty strings must check len(result).
func ReadOctetString(r io.Reader) ([]byte, error) {
	var lenBuf [1]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, int(lenBuf[0]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// InvalidUTF8Error is returned by ReadUTF8String when the decoded octet
// string is not valid UTF-8. Raw preserves the original bytes so the
// caller can inspect or log them without re-reading the wire.
type InvalidUTF8Error struct {
	Raw []byte
}

func (e *InvalidUTF8Error) Error() string {
	return fmt.Sprintf("proxyio: invalid UTF-8 in %d-byte octet string", len(e.Raw))
}

// ReadUTF8String reads a fixed-length-prefixed octet string and validates
// it as UTF-8. On failure it returns an *InvalidUTF8Error preserving the
// raw bytes, per the "preserve original contents on error" requirement.
func ReadUTF8String(r io.Reader) (string, error) {
	raw, err := ReadOctetString(r)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", &InvalidUTF8Error{Raw: raw}
	}
	return string(raw), nil
}

// WriteUTF8String is WriteOctetString for a Go string.
func WriteUTF8String(w io.Writer, s string) error {
	return WriteOctetString(w, []byte(s))
}
