// Package client implements the connecting side of a session: it puts the
// local tty into raw mode, performs the wire handshake, and runs the
// symmetric proxy loops against local stdin/stdout (§4.7).
package client

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/p2term/p2term/common/p2term"
	"github.com/p2term/p2term/common/wire"
)

// RawGuard holds the terminal's prior state so it can be restored on any
// exit path. The teacher's client tooling has no local-tty analogue; this
// is grounded on the raw-mode discipline other retrieved terminal clients
// use (MakeRaw/Restore around the whole session).
type RawGuard struct {
	fd  int
	old *term.State
}

// EnterRaw switches stdin into raw mode, if it is a terminal. If stdin
// isn't a tty (e.g. piped input in a test), it returns a no-op guard.
func EnterRaw() (*RawGuard, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return &RawGuard{fd: fd}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("enter raw mode: %w", err)
	}
	return &RawGuard{fd: fd, old: old}, nil
}

// Restore returns the terminal to cooked mode. Safe to call on a no-op
// guard or more than once.
func (g *RawGuard) Restore() {
	if g == nil || g.old == nil {
		return
	}
	_ = term.Restore(g.fd, g.old)
	g.old = nil
}

// Options are the session parameters the user requested on the command
// line.
type Options struct {
	Shell string
	Cwd   string
	Term  string
}

// RunSession performs the handshake over stream and then runs the proxy
// loops against stdin/stdout until either side ends the session
// (§4.5 client side, §4.7). The caller owns entering/restoring raw mode.
func RunSession(stream io.ReadWriteCloser, opts Options) error {
	negotiatedTerm := opts.Term
	if negotiatedTerm == "" {
		negotiatedTerm = wire.DefaultTerm
	}
	if err := wire.WriteOptions(stream, wire.Options{Shell: opts.Shell, Cwd: opts.Cwd, Term: negotiatedTerm}); err != nil {
		return p2term.Wrap("send session options", err)
	}
	if err := wire.ReadWelcome(stream); err != nil {
		return p2term.Wrap("await welcome", err)
	}
	return runProxyLoops(stream)
}
