package client

import (
	"io"
	"os"
	"time"

	"github.com/p2term/p2term/common/p2term"
)

const (
	readChunkSize = 4096
	idlePoll      = 10 * time.Millisecond
)

// runProxyLoops bridges local stdin/stdout to stream, symmetric to the
// server's proxy loops (§4.5): either loop terminating ends the session,
// with no drain of thread errors on the client side.
func runProxyLoops(stream io.ReadWriteCloser) error {
	done := make(chan error, 2)

	go func() { done <- sendLoop(stream) }()
	go func() { done <- receiveLoop(stream) }()

	return <-done
}

// sendLoop reads local stdin and forwards chunks to the stream. Ctrl-C
// (0x03) is not intercepted; it travels like any other byte (§4.7).
// idlePoll exists for the non-blocking stdin fd variants other terminals
// in the retrieved pack use; with Go's os.Stdin this read already blocks
// between chunks, so the sleep only guards a defensive zero-n/nil-err
// read rather than a busy loop.
func sendLoop(stream io.Writer) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			if _, werr := stream.Write(buf[:n]); werr != nil {
				return p2term.Wrap("write to stream", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return p2term.Wrap("read from stdin", err)
		}
		if n == 0 {
			time.Sleep(idlePoll)
		}
	}
}

// receiveLoop copies stream output to local stdout until the stream
// closes.
func receiveLoop(stream io.Reader) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			if _, werr := os.Stdout.Write(buf[:n]); werr != nil {
				return p2term.Wrap("write to stdout", werr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return p2term.Wrap("read from stream", err)
		}
	}
}
