// Package pty runs a login shell behind a pseudo-terminal and bridges its
// blocking file descriptors to buffered Go channels, the same
// thread-to-channel pattern the teacher's bridge/terminal package uses for
// its session manager, generalized from a polling buffer+notify scheme to
// plain blocking channel sends/receives (§4.4).
package pty

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/mordilloSan/go-logger/logger"

	"github.com/p2term/p2term/common/p2term"
)

// inputQueueBound and errQueueBound are the channel capacities spec §4.4
// fixes: 128 pending input messages, 2 pending thread errors.
const (
	inputQueueBound = 128
	errQueueBound   = 2
	readChunkSize   = 4096
)

// Supervisor owns one pty-backed shell process: the master fd, the child
// command, and the reader/writer goroutines bridging it to buffered
// channels. Resize is out of scope (Non-goal).
type Supervisor struct {
	ptmx *os.File
	cmd  *exec.Cmd

	input  chan []byte
	output chan []byte
	errs   chan error

	closeOnce sync.Once
	done      chan struct{}
}

// Options are the resolved, policy-checked parameters for one shell
// session: the effective shell path (already validated against the allow
// list by the caller), the working directory (empty = inherit), and the
// negotiated terminal type.
type Options struct {
	Shell string
	Cwd   string
	Term  string
}

// Start opens a pty pair and spawns opts.Shell as a login shell on its
// slave side, then launches the reader and writer goroutines.
func Start(opts Options) (*Supervisor, error) {
	term := opts.Term
	if term == "" {
		term = "xterm-256color"
	}

	cmd := exec.Command(opts.Shell, "-l")
	if opts.Cwd != "" {
		cmd.Dir = opts.Cwd
	}
	cmd.Env = append(os.Environ(),
		"TERM="+term,
		"COLORTERM=truecolor",
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", p2term.ErrPtyStart, err)
	}
	_ = pty.Setsize(ptmx, &pty.Winsize{Cols: 80, Rows: 24})

	s := &Supervisor{
		ptmx:   ptmx,
		cmd:    cmd,
		input:  make(chan []byte, inputQueueBound),
		output: make(chan []byte, 1),
		errs:   make(chan error, errQueueBound),
		done:   make(chan struct{}),
	}

	go s.writerLoop()
	go s.readerLoop()

	logger.DebugKV("pty session started", "shell", opts.Shell, "pid", cmd.Process.Pid)
	return s, nil
}

// WriteChunk enqueues bytes for the writer thread. It blocks if the input
// queue is full (the backpressure §4.4 describes), and is a no-op past
// Close.
func (s *Supervisor) WriteChunk(b []byte) {
	cp := append([]byte(nil), b...)
	select {
	case s.input <- cp:
	case <-s.done:
	}
}

// ReadBytes blocks for the next output chunk, or returns (nil, false) once
// the reader thread has hit EOF and the output queue has drained.
func (s *Supervisor) ReadBytes() ([]byte, bool) {
	b, ok := <-s.output
	return b, ok
}

// Errors returns the channel thread failures are delivered on (§4.4:
// bounded 2, read post-hoc by the caller after a session ends).
func (s *Supervisor) Errors() <-chan error {
	return s.errs
}

func (s *Supervisor) writerLoop() {
	for {
		select {
		case chunk := <-s.input:
			if _, err := s.ptmx.Write(chunk); err != nil {
				s.pushErr(fmt.Errorf("%w: write: %v", p2term.ErrPtyIO, err))
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) readerLoop() {
	buf := make([]byte, readChunkSize)
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case s.output <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			close(s.output)
			return
		}
	}
}

func (s *Supervisor) pushErr(err error) {
	select {
	case s.errs <- err:
	default:
	}
}

// Close terminates the child process, closes the pty master and waits for
// the child to exit. It signals the reader/writer goroutines to stop but
// does not wait for them: they can still be running when Close returns.
func (s *Supervisor) Close() error {
	var retErr error
	s.closeOnce.Do(func() {
		close(s.done)

		if s.cmd.Process != nil {
			_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGHUP)
		}
		if err := s.ptmx.Close(); err != nil && !isExpectedFileClosed(err) {
			retErr = fmt.Errorf("%w: close: %v", p2term.ErrPtyIO, err)
		}

		if s.cmd.Process != nil {
			waitDone := make(chan error, 1)
			go func() { waitDone <- s.cmd.Wait() }()
			select {
			case err := <-waitDone:
				if err != nil && !isExpectedWaitError(err) && retErr == nil {
					retErr = fmt.Errorf("%w: wait: %v", p2term.ErrPtyIO, err)
				}
			case <-time.After(750 * time.Millisecond):
				_ = s.cmd.Process.Kill()
				<-waitDone
			}
		}
	})
	return retErr
}

func isExpectedWaitError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "signal: hangup") ||
		strings.Contains(msg, "signal: terminated") ||
		strings.Contains(msg, "signal: killed")
}

func isExpectedFileClosed(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "file already closed") ||
		strings.Contains(msg, "bad file descriptor") ||
		strings.Contains(msg, "input/output error")
}
