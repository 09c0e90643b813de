// Package daemon wires the access gate, wire handshake, PTY supervisor and
// proxy loops into the per-connection orchestration spec §4.6 describes,
// and the signal-driven lifecycle state machine of §4.8.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mordilloSan/go-logger/logger"

	"github.com/p2term/p2term/common/p2term"
	"github.com/p2term/p2term/common/transport"
	"github.com/p2term/p2term/common/wire"
	"github.com/p2term/p2term/daemon/proxy"
	"github.com/p2term/p2term/daemon/pty"
)

// ShellPolicy is the server's shell resolution and allow-list (§3).
type ShellPolicy struct {
	Default string
	Allowed map[string]struct{}
}

// NewShellPolicy builds the policy from config: defaultShell falls back to
// $SHELL, then /bin/bash, if unset. The default is always implicitly
// allowed.
func NewShellPolicy(defaultShell string, allowedShells []string) *ShellPolicy {
	if defaultShell == "" {
		defaultShell = os.Getenv("SHELL")
	}
	if defaultShell == "" {
		defaultShell = "/bin/bash"
	}
	allowed := make(map[string]struct{}, len(allowedShells)+1)
	allowed[defaultShell] = struct{}{}
	for _, s := range allowedShells {
		allowed[s] = struct{}{}
	}
	return &ShellPolicy{Default: defaultShell, Allowed: allowed}
}

// Resolve picks the effective shell for a session: requested if set and
// allowed, else the default. ok is false when a named shell isn't in the
// allow-list (ErrShellPolicy).
func (p *ShellPolicy) Resolve(requested string) (shell string, ok bool) {
	if requested == "" {
		return p.Default, true
	}
	if _, allowed := p.Allowed[requested]; !allowed {
		return "", false
	}
	return requested, true
}

// Handler holds everything a connection needs to run a session: the
// access gate and the shell policy. One Handler serves every accepted
// stream for the life of the daemon.
type Handler struct {
	Policy      *Policy
	ShellPolicy *ShellPolicy
}

// Handle runs the 8-step orchestration of spec §4.6 for one accepted
// stream. Steps 1-2 (resolve peer, access check) are already done by
// Policy.Gate before Handle is ever called; Handle starts at step 3.
func (h *Handler) Handle(ctx context.Context, id peer.ID, s transport.Stream) {
	sessionID := uuid.NewString()
	log := func(msg string, kv ...any) {
		args := append([]any{"session", sessionID, "peer", id.String()}, kv...)
		logger.WarnKV(msg, args...)
	}
	defer func() { _ = s.Close() }()

	opts, err := wire.ReadOptions(s)
	if err != nil {
		log("handshake failed", "cause", p2term.CauseChain(err))
		return
	}

	// The wire handshake (§4.2) ends with the welcome token regardless of
	// what comes after: it confirms both directions of the stream before
	// any policy decision closes the session (S4 sends welcome, then
	// ShellPolicy). Shell validation is step 5, strictly after.
	if err := wire.WriteWelcome(s); err != nil {
		log("welcome write failed", "cause", p2term.CauseChain(err))
		return
	}

	shell, ok := h.ShellPolicy.Resolve(opts.Shell)
	if !ok {
		log("shell rejected", "cause", p2term.CauseChain(
			fmt.Errorf("%w: %s", p2term.ErrShellPolicy, opts.Shell)))
		return
	}
	if _, err := exec.LookPath(shell); err != nil {
		log("shell not found", "cause", p2term.CauseChain(fmt.Errorf("%w: %v", p2term.ErrShellPolicy, err)))
		return
	}

	sup, err := pty.Start(pty.Options{Shell: shell, Cwd: opts.Cwd, Term: opts.Term})
	if err != nil {
		log("pty start failed", "cause", p2term.CauseChain(err))
		return
	}
	defer func() { _ = sup.Close() }()

	logger.InfoKV("session started", "session", sessionID, "peer", id.String(), "shell", shell)
	if err := proxy.Run(s, sup); err != nil {
		log("session ended with error", "cause", p2term.CauseChain(err))
		return
	}
	logger.InfoKV("session ended", "session", sessionID, "peer", id.String())
}
