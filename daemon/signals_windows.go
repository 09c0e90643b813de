//go:build windows

package daemon

import (
	"os"
	"os/signal"
)

// notifyShutdownSignals registers the Windows-only shutdown signal spec
// §4.8 carves out: Ctrl-C (os.Interrupt), since syscall.SIGTERM has no
// Windows equivalent.
func notifyShutdownSignals(sigc chan<- os.Signal) {
	signal.Notify(sigc, os.Interrupt)
}
