package main

import (
	"context"
	crypto_tls "crypto/tls"
	"flag"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"fbvnc/internal/framediff"
	"fbvnc/internal/input"
	"fbvnc/internal/platform"
	"fbvnc/internal/rfb"
	"fbvnc/internal/server"
	"fbvnc/internal/session"
	"fbvnc/internal/statsview"
	tlsutil "fbvnc/internal/tls"
)

var (
	flagFBDevice    = flag.String("f", "/dev/fb0", "Framebuffer device node")
	flagKbdDevice   = flag.String("k", "", "Keyboard device node (auto-detected if empty)")
	flagPtrDevice   = flag.String("m", "", "Mouse/touch device node (auto-detected if empty)")
	flagPort        = flag.Int("p", 5900, "VNC port")
	flagVerbose     = flag.Bool("v", false, "Verbose output")
	flagVeryVerbose = flag.Bool("vv", false, "Very verbose output (every input event)")
	flagPointerMode = flag.String("pointer-mode", "buttons", "Pointer synthesis: buttons (touch plus buttons and wheel) or tap")
	flagExactBounds = flag.Bool("exact-bounds", false, "Report exact dirty rectangles instead of the legacy accumulation")
	flagDesktopName = flag.String("desktop-name", "framebuffer", "Desktop name shown to viewers")
	flagStats       = flag.Bool("stats", false, "Log pipeline stats every 5 seconds")
	flagStatsView   = flag.String("statsview", "", "Serve runtime stats charts on this address (e.g. localhost:12600)")
	flagHTTP        = flag.String("http", "", "Control plane listen address (disabled if empty)")
	flagToken       = flag.String("token", "", "Bearer token for the control plane")
	flagTLS         = flag.Bool("tls", false, "Serve the control plane with an auto-generated self-signed certificate")
	flagTLSCert     = flag.String("tls-cert", "", "Path to TLS certificate file (PEM)")
	flagTLSKey      = flag.String("tls-key", "", "Path to TLS private key file (PEM)")
)

func main() {
	flag.Parse()

	verbosity := 0
	if *flagVerbose {
		verbosity = 1
	}
	if *flagVeryVerbose {
		verbosity = 2
	}
	platform.SetupLogging(verbosity)

	mode, err := input.ParsePointerMode(*flagPointerMode)
	if err != nil {
		log.Fatal(err)
	}

	cfg := &platform.Config{
		FBDevice:  *flagFBDevice,
		KbdDevice: *flagKbdDevice,
		PtrDevice: *flagPtrDevice,
		Verbosity: verbosity,
	}
	if err := platform.Init(cfg); err != nil {
		log.Fatal(err)
	}

	// TLS validation
	if (*flagTLSCert != "") != (*flagTLSKey != "") {
		log.Fatal("-tls-cert and -tls-key must both be set")
	}
	var tlsConfig *crypto_tls.Config
	if *flagTLSCert != "" {
		tlsConfig, err = tlsutil.FromFiles(*flagTLSCert, *flagTLSKey)
	} else if *flagTLS {
		tlsConfig, err = tlsutil.SelfSigned(tlsutil.AddrHost(*flagHTTP))
	}
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if *flagHTTP != "" && *flagToken == "" {
		log.Warn("control plane enabled without -token, anyone who can reach it can inject input")
	}

	if *flagStatsView != "" {
		stop := statsview.Launch(*flagStatsView)
		defer stop()
	}

	bounds := framediff.LegacyBounds
	if *flagExactBounds {
		bounds = framediff.TrueBounds
	}

	srv, err := server.New(server.Config{
		FBDevice:    cfg.FBDevice,
		KbdDevice:   cfg.KbdDevice,
		PtrDevice:   cfg.PtrDevice,
		Port:        *flagPort,
		DesktopName: *flagDesktopName,
		Bounds:      bounds,
		Stats:       *flagStats,

		Addr:  *flagHTTP,
		Token: *flagToken,
		TLS:   tlsConfig,

		NewSurface:  newSurface,
		NewKeyboard: newKeyboard,
		NewPointer:  pointerFactory(mode),
		NewServer:   rfb.DefaultServerFactory(),
		NewPeer:     session.NewPeer,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
