// Package wire implements the session handshake described in spec §4.2 and
// §6: a single length-prefixed options frame from the client, answered by a
// fixed 8-byte welcome token from the server. Nothing else crosses the wire
// before the handshake completes (I1).
//
// Frame layout: u16_le(len) ‖ encoded_options, len <= MaxOptionsLen.
// Options encoding: one presence byte (bit 0 = shell, bit 1 = cwd, bit 2 =
// term), then each present field as u16_le(len) ‖ utf8 bytes — the same
// length-prefix discipline the teacher's ipc.WriteFrame/ReadFrame use, just
// applied field-by-field instead of once per whole payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/p2term/p2term/common/p2term"
)

// MaxOptionsLen is the hard cap on the options frame (I2).
const MaxOptionsLen = 4096

// ProtoID is the wire bytes transport adapters announce as the
// ALPN-equivalent protocol identifier.
const ProtoID = "p2term-proto"

// Welcome is the fixed 8-byte token the server writes after a
// successfully decoded options frame (I1).
var Welcome = []byte("welcome ")

const (
	flagShell = 1 << 0
	flagCwd   = 1 << 1
	flagTerm  = 1 << 2
)

// DefaultTerm is substituted by the daemon when Options.Term is empty, at
// the point the PTY environment is built — not during decode, so a bare
// zero-options frame still round-trips byte-for-byte through Encode/Decode.
const DefaultTerm = "xterm-256color"

// Options are the client's requested session parameters (§3).
type Options struct {
	Shell string
	Cwd   string
	Term  string
}

// Encode serializes Options into the compact binary form the client sends.
func Encode(o Options) []byte {
	var flags byte
	if o.Shell != "" {
		flags |= flagShell
	}
	if o.Cwd != "" {
		flags |= flagCwd
	}
	if o.Term != "" {
		flags |= flagTerm
	}

	buf := []byte{flags}
	if o.Shell != "" {
		buf = appendField(buf, o.Shell)
	}
	if o.Cwd != "" {
		buf = appendField(buf, o.Cwd)
	}
	if o.Term != "" {
		buf = appendField(buf, o.Term)
	}
	return buf
}

func appendField(buf []byte, s string) []byte {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(s)))
	buf = append(buf, lenBuf[:]...)
	return append(buf, s...)
}

// Decode parses a received options payload (already length-checked by the
// caller). Truncated fields are ErrHandshakeBadOptions.
func Decode(payload []byte) (Options, error) {
	if len(payload) == 0 {
		return Options{}, nil
	}
	flags := payload[0]
	rest := payload[1:]

	var o Options
	var err error
	if flags&flagShell != 0 {
		if o.Shell, rest, err = readField(rest); err != nil {
			return Options{}, err
		}
	}
	if flags&flagCwd != 0 {
		if o.Cwd, rest, err = readField(rest); err != nil {
			return Options{}, err
		}
	}
	if flags&flagTerm != 0 {
		if o.Term, rest, err = readField(rest); err != nil {
			return Options{}, err
		}
	}
	return o, nil
}

func readField(buf []byte) (string, []byte, error) {
	if len(buf) < 2 {
		return "", nil, p2term.ErrHandshakeBadOptions
	}
	n := int(binary.LittleEndian.Uint16(buf[:2]))
	buf = buf[2:]
	if len(buf) < n {
		return "", nil, p2term.ErrHandshakeBadOptions
	}
	return string(buf[:n]), buf[n:], nil
}

// WriteOptions sends the client's options frame as two ordinary writes —
// length prefix, then payload — since some transports only coalesce the
// first buffer of a vectored write (§4.2).
func WriteOptions(w io.Writer, o Options) error {
	payload := Encode(o)
	if len(payload) > MaxOptionsLen {
		return p2term.ErrHandshakeOversize
	}
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return p2term.Wrap("write options length", err)
	}
	if _, err := w.Write(payload); err != nil {
		return p2term.Wrap("write options payload", err)
	}
	return nil
}

// ReadOptions reads and decodes the client's options frame, enforcing the
// 4096-byte cap (I2) before reading the payload.
func ReadOptions(r io.Reader) (Options, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Options{}, p2term.Wrap("read options length", fmt.Errorf("%w: %v", p2term.ErrHandshakeTruncated, err))
	}
	n := binary.LittleEndian.Uint16(lenBuf[:])
	if n > MaxOptionsLen {
		return Options{}, p2term.ErrHandshakeOversize
	}
	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Options{}, p2term.Wrap("read options payload", fmt.Errorf("%w: %v", p2term.ErrHandshakeTruncated, err))
		}
	}
	o, err := Decode(payload)
	if err != nil {
		return Options{}, err
	}
	return o, nil
}

// WriteWelcome writes the fixed welcome token (server side).
func WriteWelcome(w io.Writer) error {
	if _, err := w.Write(Welcome); err != nil {
		return p2term.Wrap("write welcome token", err)
	}
	return nil
}

// ReadWelcome reads and validates the welcome token (client side).
func ReadWelcome(r io.Reader) error {
	buf := make([]byte, len(Welcome))
	if _, err := io.ReadFull(r, buf); err != nil {
		return p2term.Wrap("read welcome token", p2term.ErrHandshakeNoWelcome)
	}
	for i := range buf {
		if buf[i] != Welcome[i] {
			return fmt.Errorf("%w: got %q", p2term.ErrHandshakeNoWelcome, buf)
		}
	}
	return nil
}
