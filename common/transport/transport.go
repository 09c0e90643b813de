// Package transport wraps go-libp2p into the minimal peer-to-peer
// transport this system needs: dial a peer by its hex public key, accept
// incoming streams on a single protocol ID, and hand back a plain
// io.ReadWriteCloser. Everything above this package (handshake, PTY
// proxying) is libp2p-agnostic.
package transport

import (
	"context"
	"fmt"
	"io"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"

	"github.com/mordilloSan/go-logger/logger"
	"github.com/p2term/p2term/common/identity"
	"github.com/p2term/p2term/common/p2term"
	"github.com/p2term/p2term/common/wire"
)

// ProtoID is the single stream protocol this daemon speaks. One protocol,
// one purpose: a remote login shell.
const ProtoID = protocol.ID(wire.ProtoID)

// Stream is the duplex byte pipe a session runs over, whether it came
// from accepting an inbound libp2p stream or dialing an outbound one.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
	// CloseWrite half-closes the write side, signaling EOF to the peer
	// without tearing down the read side.
	CloseWrite() error
}

// streamAdapter satisfies Stream over a libp2p network.Stream.
type streamAdapter struct {
	network.Stream
}

func (s streamAdapter) CloseWrite() error {
	return s.Stream.CloseWrite()
}

// Host wraps a libp2p host.Host, the identity and listen addresses it was
// built from.
type Host struct {
	h  host.Host
	kp *identity.KeyPair
}

// NewHost constructs a libp2p host bound to kp's private key, listening on
// listenAddrs (multiaddr strings, e.g. "/ip4/0.0.0.0/tcp/4145"). An empty
// listenAddrs means dial-only (client mode): the host still gets a peer ID
// but doesn't accept connections.
func NewHost(kp *identity.KeyPair, listenAddrs []string) (*Host, error) {
	opts := []libp2p.Option{
		libp2p.Identity(kp.PrivKey()),
	}
	if len(listenAddrs) > 0 {
		addrs := make([]multiaddr.Multiaddr, 0, len(listenAddrs))
		for _, a := range listenAddrs {
			ma, err := multiaddr.NewMultiaddr(a)
			if err != nil {
				return nil, fmt.Errorf("%w: parse listen addr %q: %v", p2term.ErrTransport, a, err)
			}
			addrs = append(addrs, ma)
		}
		opts = append(opts, libp2p.ListenAddrs(addrs...))
	} else {
		opts = append(opts, libp2p.NoListenAddrs)
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: create libp2p host: %v", p2term.ErrTransport, err)
	}
	return &Host{h: h, kp: kp}, nil
}

// PeerID is this host's own identity.
func (h *Host) PeerID() peer.ID { return h.h.ID() }

// Addrs returns the host's listen multiaddrs, for the daemon's startup log
// line.
func (h *Host) Addrs() []multiaddr.Multiaddr { return h.h.Addrs() }

// Close shuts down the underlying libp2p host.
func (h *Host) Close() error { return h.h.Close() }

// AcceptHandler is invoked once per inbound session stream. It owns the
// stream's lifetime: the handler is responsible for closing it.
type AcceptHandler func(ctx context.Context, peerID peer.ID, s Stream)

// SetAcceptHandler registers the daemon's connection handler against
// ProtoID. libp2p already runs each stream's negotiation and handler
// callback on its own goroutine (the same one-goroutine-per-stream shape
// the teacher's bridge/main.go accept loop uses), so fn runs inline here
// rather than under a second, redundant goroutine — that keeps the call
// synchronous from the caller's point of view, which matters for
// bookkeeping like a WaitGroup.Add that must happen before the fn that
// calls the matching Done.
func (h *Host) SetAcceptHandler(ctx context.Context, fn AcceptHandler) {
	h.h.SetStreamHandler(ProtoID, func(s network.Stream) {
		fn(ctx, s.Conn().RemotePeer(), streamAdapter{s})
	})
}

// Connect dials peerHex (a hex-encoded ed25519 public key) at addr (a
// multiaddr string including the /p2p/<id> suffix, or a bare
// /ip4/.../tcp/... addr combined with peerHex) and opens the session
// stream.
func Connect(ctx context.Context, h *Host, peerHex string, addr string) (Stream, error) {
	id, err := identity.PeerIDFromHex(peerHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", p2term.ErrTransport, err)
	}

	if addr != "" {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("%w: parse peer addr %q: %v", p2term.ErrTransport, addr, err)
		}
		h.h.Peerstore().AddAddr(id, ma, peerTTL)
	}

	logger.DebugKV("dialing peer", "peer", id.String())
	s, err := h.h.NewStream(ctx, id, ProtoID)
	if err != nil {
		return nil, fmt.Errorf("%w: open stream to %s: %v", p2term.ErrTransport, id, err)
	}
	return streamAdapter{s}, nil
}

// peerTTL mirrors the "permanent for the life of this process" addressing
// libp2p's AddressTTL constants express; a one-shot client has no reason
// to ever expire it.
const peerTTL = 1 << 62
