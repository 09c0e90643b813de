package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/p2term/p2term/common/p2term"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Options{
		{},
		{Shell: "/bin/zsh"},
		{Shell: "/bin/zsh", Cwd: "/home/x", Term: "xterm"},
		{Cwd: "/tmp"},
	}
	for _, o := range cases {
		got, err := Decode(Encode(o))
		if err != nil {
			t.Fatalf("Decode error for %+v: %v", o, err)
		}
		if got != o {
			t.Fatalf("round trip mismatch: got %+v, want %+v", got, o)
		}
	}
}

func TestDecodeTruncatedField(t *testing.T) {
	// presence byte claims a shell field but payload is cut short.
	payload := []byte{flagShell, 0x05, 0x00, 'a', 'b'}
	if _, err := Decode(payload); err == nil {
		t.Fatalf("expected error decoding truncated field")
	}
}

func TestWriteReadOptions(t *testing.T) {
	var buf bytes.Buffer
	o := Options{Shell: "/bin/bash", Cwd: "/root", Term: "xterm-256color"}
	if err := WriteOptions(&buf, o); err != nil {
		t.Fatalf("WriteOptions error: %v", err)
	}
	got, err := ReadOptions(&buf)
	if err != nil {
		t.Fatalf("ReadOptions error: %v", err)
	}
	if got != o {
		t.Fatalf("got %+v, want %+v", got, o)
	}
}

func TestReadOptionsOversize(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [2]byte
	lenBuf[0] = 0xff
	lenBuf[1] = 0xff // 65535 > MaxOptionsLen
	buf.Write(lenBuf[:])
	if _, err := ReadOptions(&buf); err == nil {
		t.Fatalf("expected oversize error")
	}
}

func TestWriteOptionsOversizeRejected(t *testing.T) {
	big := make([]byte, MaxOptionsLen+1)
	for i := range big {
		big[i] = 'a'
	}
	var buf bytes.Buffer
	err := WriteOptions(&buf, Options{Shell: string(big)})
	if err == nil {
		t.Fatalf("expected oversize error")
	}
}

func TestReadOptionsTruncatedLengthPrefix(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0x01}) // one byte of a two-byte length prefix
	_, err := ReadOptions(buf)
	if !errors.Is(err, p2term.ErrHandshakeTruncated) {
		t.Fatalf("expected ErrHandshakeTruncated, got %v", err)
	}
}

func TestReadOptionsTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [2]byte
	lenBuf[0] = 0x05 // claims 5 bytes of payload
	buf.Write(lenBuf[:])
	buf.Write([]byte{'a', 'b'}) // only 2 delivered
	_, err := ReadOptions(&buf)
	if !errors.Is(err, p2term.ErrHandshakeTruncated) {
		t.Fatalf("expected ErrHandshakeTruncated, got %v", err)
	}
}

func TestWelcomeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWelcome(&buf); err != nil {
		t.Fatalf("WriteWelcome error: %v", err)
	}
	if err := ReadWelcome(&buf); err != nil {
		t.Fatalf("ReadWelcome error: %v", err)
	}
}

func TestReadWelcomeRejectsGarbage(t *testing.T) {
	buf := bytes.NewBufferString("notwelcm")
	if err := ReadWelcome(buf); err == nil {
		t.Fatalf("expected error for non-welcome bytes")
	}
}
