// Command p2term is the client: it dials a daemon over libp2p, performs
// the session handshake, and runs an interactive remote shell against the
// local terminal.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mordilloSan/go-logger/logger"
	"github.com/spf13/pflag"

	"github.com/p2term/p2term/client"
	"github.com/p2term/p2term/common/config"
	"github.com/p2term/p2term/common/identity"
	"github.com/p2term/p2term/common/transport"
	"github.com/p2term/p2term/common/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  p2term connect --peer <hex> --addr <multiaddr> [--shell <path>] [--cwd <dir>]
  p2term generate-keys [--secret-key-output-file <path>]
  p2term version
`)
}

// envFallback returns flagVal if the user set it, else the named
// P2TERM_* environment variable (§6), else "".
func envFallback(flagVal, envName string) string {
	if flagVal != "" {
		return flagVal
	}
	return os.Getenv(envName)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "connect":
		runConnect(args)
	case "generate-keys":
		runGenerateKeys()
	case "version":
		fmt.Printf("p2term %s (%s, built %s)\n", version.Version, version.CommitSHA, version.BuildTime)
	default:
		usage()
		os.Exit(2)
	}
}

func runGenerateKeys() {
	fs := pflag.NewFlagSet("generate-keys", pflag.ExitOnError)
	var outFile string
	fs.StringVar(&outFile, "secret-key-output-file", "", "write the raw 32-byte secret key here instead of printing it")
	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	kp, err := identity.Generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate keys: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("public_key_hex = %q\n", kp.PublicKeyHex())

	if outFile != "" {
		if err := kp.WriteFile(outFile); err != nil {
			fmt.Fprintf(os.Stderr, "write secret key file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("secret key written to %s\n", outFile)
		return
	}
	fmt.Printf("secret_key_hex = %q\n", kp.SecretKeyHex())
}

func runConnect(args []string) {
	fs := pflag.NewFlagSet("connect", pflag.ExitOnError)
	var (
		peerHex    string
		addr       string
		shell      string
		cwd        string
		secretHex  string
		secretFile string
		verbose    bool
		envMode    string
	)
	fs.StringVar(&peerHex, "peer", "", "hex-encoded public key of the daemon to connect to (required)")
	fs.StringVar(&addr, "addr", "", "multiaddr of the daemon, e.g. /ip4/1.2.3.4/tcp/4145")
	fs.StringVar(&shell, "shell", "", "requested shell path (optional; server applies policy)")
	fs.StringVar(&cwd, "cwd", "", "requested working directory (optional)")
	fs.StringVar(&secretHex, "secret-key-hex", "", "this client's 64-hex-character secret key")
	fs.StringVar(&secretFile, "secret-key-file", "", "path to this client's 32-byte raw secret key file")
	fs.BoolVar(&verbose, "verbose", false, "enable verbose logs")
	fs.StringVar(&envMode, "env", config.EnvProduction, "environment (development|production)")
	if err := fs.Parse(args); err != nil {
		os.Exit(2)
	}

	peerHex = envFallback(peerHex, "P2TERM_PEER")
	shell = envFallback(shell, "P2TERM_SHELL")
	cwd = envFallback(cwd, "P2TERM_CWD")
	secretHex = envFallback(secretHex, "P2TERM_SECRET_KEY_HEX")
	secretFile = envFallback(secretFile, "P2TERM_SECRET_KEY_FILE")

	logger.InitWithFile(envMode, verbose, "")

	if peerHex == "" || addr == "" {
		fmt.Fprintln(os.Stderr, "connect requires --peer and --addr")
		usage()
		os.Exit(2)
	}

	kp, _, err := identity.Resolve(secretHex, secretFile)
	if err != nil {
		logger.Errorf("resolve identity: %v", err)
		os.Exit(1)
	}

	host, err := transport.NewHost(kp, nil)
	if err != nil {
		logger.Errorf("create transport host: %v", err)
		os.Exit(1)
	}
	defer func() { _ = host.Close() }()

	ctx := context.Background()
	stream, err := transport.Connect(ctx, host, peerHex, addr)
	if err != nil {
		logger.Errorf("connect: %v", err)
		os.Exit(1)
	}

	guard, err := client.EnterRaw()
	if err != nil {
		logger.Errorf("enter raw mode: %v", err)
		_ = stream.Close()
		os.Exit(1)
	}
	defer guard.Restore()

	err = client.RunSession(stream, client.Options{Shell: shell, Cwd: cwd})
	guard.Restore()
	_ = stream.Close()
	if err != nil {
		logger.Errorf("session ended with error: %v", err)
		os.Exit(1)
	}
}
