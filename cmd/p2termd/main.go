// Command p2termd is the daemon: it resolves its identity and access
// policy from flags and an optional TOML config file, opens a libp2p
// host, and serves remote-shell sessions until interrupted (§4.8).
package main

import (
	"fmt"
	"os"

	"github.com/mordilloSan/go-logger/logger"
	"github.com/spf13/pflag"

	"github.com/p2term/p2term/common/config"
	"github.com/p2term/p2term/common/identity"
	"github.com/p2term/p2term/common/transport"
	"github.com/p2term/p2term/common/version"
	"github.com/p2term/p2term/daemon"
)

func main() {
	var (
		envMode     string
		verbose     bool
		showVersion bool
		configPath  string
		secretHex   string
		secretFile  string
		listenAddrs []string
	)
	pflag.StringVar(&envMode, "env", config.EnvProduction, "environment (development|production)")
	pflag.BoolVar(&verbose, "verbose", false, "enable verbose logs")
	pflag.BoolVar(&showVersion, "version", false, "print version and exit")
	pflag.StringVarP(&configPath, "config-file", "c", "", "path to TOML config file")
	pflag.StringVar(&secretHex, "secret-key-hex", "", "64-hex-character ed25519 secret key (overrides config)")
	pflag.StringVar(&secretFile, "secret-key-file", "", "path to 32-byte raw secret key file (overrides config)")
	pflag.StringArrayVar(&listenAddrs, "listen", []string{"/ip4/0.0.0.0/tcp/4145"}, "libp2p listen multiaddr (repeatable)")
	pflag.Parse()

	if showVersion || (len(pflag.Args()) > 0 && pflag.Args()[0] == "version") {
		fmt.Printf("p2termd %s (%s, built %s)\n", version.Version, version.CommitSHA, version.BuildTime)
		return
	}

	logger.InitWithFile(envMode, verbose, "")

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	if secretHex == "" {
		secretHex = cfg.SecretKeyHex
	}
	if secretFile == "" {
		secretFile = cfg.SecretKeyFile
	}
	kp, generated, err := identity.Resolve(secretHex, secretFile)
	if err != nil {
		logger.Errorf("resolve identity: %v", err)
		os.Exit(1)
	}
	if generated {
		logger.WarnKV("no persistent identity configured, generated an ephemeral key pair for this run",
			"public_key", kp.PublicKeyHex())
	}
	logger.InfoKV("daemon identity", "public_key", kp.PublicKeyHex())

	if len(cfg.AllowedPeers) == 0 {
		logger.Warnf("no allowed_peers configured: accepting connections from any peer")
	}
	policy, err := daemon.NewPolicy(cfg.AllowedPeers)
	if err != nil {
		logger.Errorf("build access policy: %v", err)
		os.Exit(1)
	}

	host, err := transport.NewHost(kp, listenAddrs)
	if err != nil {
		logger.Errorf("create transport host: %v", err)
		os.Exit(1)
	}
	defer func() { _ = host.Close() }()

	handler := &daemon.Handler{
		Policy:      policy,
		ShellPolicy: daemon.NewShellPolicy(cfg.DefaultShell, cfg.AllowedShells),
	}

	daemon.Run(host, handler)
}
