package daemon

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/mordilloSan/go-logger/logger"

	"github.com/p2term/p2term/common/transport"
)

// gracePeriod is how long Run waits for in-flight sessions to finish
// draining after the first interrupt, mirroring the teacher's
// bridge/main.go 5-second shutdown grace window.
const gracePeriod = 5 * time.Second

// Run implements the S0 (running) -> S1 (draining) -> exit state machine
// of spec §4.8: the host accepts connections until an interrupt arrives,
// then waits up to gracePeriod for active sessions to end on their own; a
// second interrupt or the timer elapsing forces immediate exit.
func Run(host *transport.Host, handler *Handler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wg.Add happens synchronously here, in the goroutine libp2p invokes
	// the accept handler on, strictly before the goroutine that calls the
	// matching Done is spawned. Adding inside that spawned goroutine
	// instead would race with Wait below: Wait could observe the counter
	// still at zero before the new goroutine gets scheduled.
	var wg sync.WaitGroup
	tracked := func(ctx context.Context, id peer.ID, s transport.Stream) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.Handle(ctx, id, s)
		}()
	}
	host.SetAcceptHandler(ctx, handler.Policy.Gate(tracked))

	logger.InfoKV("daemon listening", "peer_id", host.PeerID().String())
	for _, a := range host.Addrs() {
		logger.InfoKV("listen address", "addr", a.String())
	}

	sigc := make(chan os.Signal, 1)
	notifyShutdownSignals(sigc)

	<-sigc
	logger.Infof("shutdown signal received, draining for up to %s", gracePeriod)

	drained := make(chan struct{})
	go func() {
		wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		logger.Infof("shutdown complete")
	case <-sigc:
		logger.Warnf("second signal received, forcing exit")
	case <-time.After(gracePeriod):
		logger.Warnf("grace period exceeded, forcing exit")
	}
}
