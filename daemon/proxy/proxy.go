// Package proxy runs the two concurrent copy loops that bridge a session
// stream to a PTY Supervisor, generalized from the teacher's
// bridge/handlers/terminal relayPTYToStream/relayStreamToPTY pair: raw
// bytes instead of opcode-framed messages, since this protocol has no
// resize or multi-stream framing to carry (§4.5).
package proxy

import (
	"errors"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/mordilloSan/go-logger/logger"

	"github.com/p2term/p2term/common/p2term"
	"github.com/p2term/p2term/daemon/pty"
)

const readChunkSize = 4096

// siblingWait bounds how long Run waits, after the first loop ends, for
// the sibling's result before classifying the session as ended anyway —
// matching the client side's "either loop terminating ends the session"
// rule instead of hanging on a sibling that never gets forced to stop.
const siblingWait = 2 * time.Second

// Run bridges stream and sup until either loop terminates (symmetric to
// client/proxy.go's runProxyLoops). It then closes sup, waits at most
// siblingWait for the other loop's result, and implements the server-side
// termination table from spec §4.5: input-err + output-err drains the
// supervisor's pending thread errors, logs every cause, and returns
// p2term.ErrStreamIO; every other combination is a normal close.
func Run(stream io.ReadWriter, sup *pty.Supervisor) error {
	inputDone := make(chan error, 1)
	outputDone := make(chan error, 1)

	go func() { inputDone <- inputLoop(stream, sup) }()
	go func() { outputDone <- outputLoop(stream, sup) }()

	var inputErr, outputErr error
	select {
	case inputErr = <-inputDone:
	case outputErr = <-outputDone:
	}

	// The first loop to finish ends the session. Force the supervisor
	// down now: a sibling blocked on sup.ReadBytes() unblocks as soon as
	// the pty closes, so outputLoop no longer waits on a shell that has
	// no reason to keep running. A sibling still blocked on the stream
	// itself (the peer hasn't closed its side) is bounded by siblingWait
	// instead — it finishes on its own once the caller tears the stream
	// down after Run returns.
	sup.Close()

	select {
	case inputErr = <-inputDone:
	case outputErr = <-outputDone:
	case <-time.After(siblingWait):
	}

	if inputErr != nil && outputErr != nil {
		return drainThreadErrors(sup, inputErr, outputErr)
	}
	return nil
}

// inputLoop reads from the stream and forwards chunks to the PTY's input
// queue. A clean EOF or a reset stream (the peer closed without further
// writes) both return nil, per spec's "not-connected is normalized to Ok".
func inputLoop(stream io.ReadWriter, sup *pty.Supervisor) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			sup.WriteChunk(buf[:n])
		}
		if err != nil {
			if err == io.EOF || errors.Is(err, network.ErrReset) {
				return nil
			}
			return p2term.Wrap("stream read", err)
		}
	}
}

// outputLoop waits for PTY output chunks and writes each in full to the
// stream. The supervisor closing its output channel (shell exited) ends
// the loop cleanly.
func outputLoop(stream io.ReadWriter, sup *pty.Supervisor) error {
	for {
		chunk, ok := sup.ReadBytes()
		if !ok {
			return nil
		}
		if _, err := stream.Write(chunk); err != nil {
			return p2term.Wrap("stream write", err)
		}
	}
}

func drainThreadErrors(sup *pty.Supervisor, inputErr, outputErr error) error {
	var causes []error
	causes = append(causes, inputErr, outputErr)
drain:
	for {
		select {
		case e := <-sup.Errors():
			causes = append(causes, e)
		default:
			break drain
		}
	}
	err := p2term.ErrStreamIO
	for _, c := range causes {
		logger.WarnKV("session ended with error", "cause", p2term.CauseChain(c))
	}
	return err
}
