// Package p2term holds the error kinds shared across the daemon and client,
// and the cause-chain formatting used when logging a terminated session.
package p2term

import (
	"errors"
	"strings"
)

// Error kinds from §7. Each is a sentinel; call sites wrap it with %w to
// attach detail ("dial peer: %w", ErrTransport) so errors.Is still matches.
var (
	ErrConfig              = errors.New("config error")
	ErrTransport           = errors.New("transport error")
	ErrHandshakeOversize   = errors.New("handshake options frame exceeds 4096 bytes")
	ErrHandshakeTruncated  = errors.New("handshake frame truncated")
	ErrHandshakeBadOptions = errors.New("handshake options frame failed to decode")
	ErrHandshakeNoWelcome  = errors.New("handshake welcome token not received")
	ErrAccessDenied        = errors.New("peer not allowed")
	ErrShellPolicy         = errors.New("requested shell not allowed")
	ErrPtyStart            = errors.New("pty start failed")
	ErrPtyIO               = errors.New("pty i/o error")
	ErrStreamIO            = errors.New("stream i/o error")
	ErrShutdown            = errors.New("shutdown deadline exceeded")
)

// wrapped pairs a context message with its cause, kept distinct so
// CauseChain can print each level once instead of the duplicated text
// fmt.Errorf("%w") produces when its message is re-rendered at every level.
type wrapped struct {
	msg   string
	cause error
}

// Wrap attaches a context message to cause. errors.Is/As still see through
// it via Unwrap.
func Wrap(msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &wrapped{msg: msg, cause: cause}
}

func (w *wrapped) Error() string { return w.msg + ": " + w.cause.Error() }
func (w *wrapped) Unwrap() error { return w.cause }

// CauseChain flattens an error's Unwrap chain into the " -> " joined form
// §7 specifies for WARN-level session-teardown logging: one entry per
// context message, ending in the root cause.
func CauseChain(err error) string {
	if err == nil {
		return ""
	}
	var parts []string
	for err != nil {
		if w, ok := err.(*wrapped); ok {
			parts = append(parts, w.msg)
			err = w.cause
			continue
		}
		parts = append(parts, err.Error())
		err = errors.Unwrap(err)
	}
	return strings.Join(parts, " -> ")
}
