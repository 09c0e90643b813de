package daemon

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/p2term/p2term/common/identity"
	"github.com/p2term/p2term/common/wire"
)

// fakeStream is a minimal transport.Stream over a pair of io.Pipes,
// standing in for a real libp2p stream the way proxy_test's loopbackStream
// does for the proxy package.
type fakeStream struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (f *fakeStream) Read(p []byte) (int, error)  { return f.r.Read(p) }
func (f *fakeStream) Write(p []byte) (int, error) { return f.w.Write(p) }
func (f *fakeStream) Close() error {
	_ = f.w.Close()
	return f.r.Close()
}
func (f *fakeStream) CloseWrite() error { return f.w.Close() }

// newFakeSession returns the two ends of a session stream: serverSide is
// what Handler.Handle reads/writes, peerSide is what the test drives as
// the simulated client.
func newFakeSession() (serverSide, peerSide *fakeStream) {
	r1, w1 := io.Pipe() // server -> peer
	r2, w2 := io.Pipe() // peer -> server
	return &fakeStream{r: r2, w: w1}, &fakeStream{r: r1, w: w2}
}

func testPeerID(t *testing.T) peer.ID {
	t.Helper()
	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate identity: %v", err)
	}
	return kp.PeerID()
}

// TestHandleDefaultsRoundTrip covers S1: a zero-options frame gets a
// welcome reply, then bytes written by the client reach the shell and its
// output reaches the client in order.
func TestHandleDefaultsRoundTrip(t *testing.T) {
	h := &Handler{
		Policy:      &Policy{},
		ShellPolicy: NewShellPolicy("/bin/sh", nil),
	}
	server, peerSide := newFakeSession()

	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), testPeerID(t), server)
		close(done)
	}()

	if err := wire.WriteOptions(peerSide, wire.Options{}); err != nil {
		t.Fatalf("write options: %v", err)
	}
	if err := wire.ReadWelcome(peerSide); err != nil {
		t.Fatalf("read welcome: %v", err)
	}

	if _, err := peerSide.Write([]byte("echo hi_from_test\n")); err != nil {
		t.Fatalf("write shell input: %v", err)
	}

	var out bytes.Buffer
	readDone := make(chan struct{})
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := peerSide.Read(buf)
			if n > 0 {
				out.Write(buf[:n])
				if bytes.Contains(out.Bytes(), []byte("hi_from_test")) {
					close(readDone)
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	select {
	case <-readDone:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for echoed output, got so far: %q", out.String())
	}

	_ = peerSide.Close()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Handle did not return after peer closed the stream")
	}
}

// TestHandleShellPolicyRejectsAfterWelcome covers S4: the server sends
// welcome (handshake completes) before evaluating shell policy, then
// closes without starting a pty when the requested shell is disallowed.
func TestHandleShellPolicyRejectsAfterWelcome(t *testing.T) {
	h := &Handler{
		Policy:      &Policy{},
		ShellPolicy: NewShellPolicy("/bin/bash", []string{"/bin/bash"}),
	}
	server, peerSide := newFakeSession()

	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), testPeerID(t), server)
		close(done)
	}()

	if err := wire.WriteOptions(peerSide, wire.Options{Shell: "/bin/zsh"}); err != nil {
		t.Fatalf("write options: %v", err)
	}
	if err := wire.ReadWelcome(peerSide); err != nil {
		t.Fatalf("expected welcome before shell-policy rejection: %v", err)
	}

	buf := make([]byte, 16)
	if _, err := peerSide.Read(buf); err == nil {
		t.Fatalf("expected the session to close with no shell bytes after shell-policy rejection")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Handle did not return after rejecting the shell")
	}
}

// TestHandleOversizeNeverWritesWelcome covers P2: a declared length over
// MaxOptionsLen closes the connection before any welcome byte.
func TestHandleOversizeNeverWritesWelcome(t *testing.T) {
	h := &Handler{
		Policy:      &Policy{},
		ShellPolicy: NewShellPolicy("/bin/sh", nil),
	}
	server, peerSide := newFakeSession()

	done := make(chan struct{})
	go func() {
		h.Handle(context.Background(), testPeerID(t), server)
		close(done)
	}()

	lenBuf := []byte{0xff, 0xff} // 65535 > MaxOptionsLen
	if _, err := peerSide.Write(lenBuf); err != nil {
		t.Fatalf("write oversize length prefix: %v", err)
	}

	buf := make([]byte, 8)
	if _, err := peerSide.Read(buf); err == nil {
		t.Fatalf("expected connection to close without a welcome token")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("Handle did not return after oversize handshake")
	}
}
