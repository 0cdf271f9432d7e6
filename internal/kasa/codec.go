package kasa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// initialKey seeds the autokey XOR cipher used by the smart-home protocol.
const initialKey byte = 171

// maxResponseSize bounds the payload accepted from a device.
const maxResponseSize = 64 << 10 // 64KB

// ErrResponseTooLarge is returned when a device announces a payload larger
// than the accepted maximum.
var ErrResponseTooLarge = errors.New("kasa: response exceeds size limit")

// Encrypt obfuscates plain with the autokey cipher: each output byte becomes
// the key for the next.
func Encrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := initialKey
	for i, b := range plain {
		key ^= b
		out[i] = key
	}
	return out
}

// Decrypt reverses [Encrypt].
func Decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := initialKey
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}

// WriteFrame writes payload encrypted and prefixed with its 4-byte
// big-endian length.
func WriteFrame(w io.Writer, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], Encrypt(payload))
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame and returns its decrypted payload.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > maxResponseSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrResponseTooLarge, size)
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return Decrypt(body), nil
}
