package daemon

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mordilloSan/go-logger/logger"

	"github.com/p2term/p2term/common/identity"
	"github.com/p2term/p2term/common/p2term"
	"github.com/p2term/p2term/common/transport"
)

// Policy is the daemon's access gate: a set of allowed peer public keys,
// or "any peer" when the set is empty (§4.3).
type Policy struct {
	allowed map[peer.ID]struct{}
}

// NewPolicy builds a Policy from the configured hex-encoded allow-list.
// An empty list means any peer may connect; the caller logs the WARN for
// that case at startup, same as the teacher logs permissive config at boot.
func NewPolicy(allowedPeers []string) (*Policy, error) {
	if len(allowedPeers) == 0 {
		return &Policy{}, nil
	}
	allowed := make(map[peer.ID]struct{}, len(allowedPeers))
	for _, hexKey := range allowedPeers {
		id, err := identity.PeerIDFromHex(hexKey)
		if err != nil {
			return nil, err
		}
		allowed[id] = struct{}{}
	}
	return &Policy{allowed: allowed}, nil
}

// IsAllowed reports whether id may open a session. Any-peer mode accepts
// everyone.
func (p *Policy) IsAllowed(id peer.ID) bool {
	if len(p.allowed) == 0 {
		return true
	}
	_, ok := p.allowed[id]
	return ok
}

// Gate wraps an AcceptHandler with the access check, the same
// handler-wrapping shape the teacher's RequirePrivileged middleware uses:
// the check runs before the wrapped handler, and rejects close the
// connection without invoking it.
func (p *Policy) Gate(handler transport.AcceptHandler) transport.AcceptHandler {
	return func(ctx context.Context, id peer.ID, s transport.Stream) {
		if !p.IsAllowed(id) {
			logger.WarnKV("rejected connection", "peer", id.String(), "reason", p2term.ErrAccessDenied.Error())
			_ = s.Close()
			return
		}
		handler(ctx, id, s)
	}
}
