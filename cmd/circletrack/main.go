// Circletrack — CLI entry point.
//
// The offering side (server) streams an animated circle over WebRTC and pings
// the answering side (client), which detects the circle in each frame and
// reports its coordinates back. The server logs the tracking error of every
// report.
//
// It can be launched interactively (no -role) or non-interactively via CLI
// flags (-role, -host, -port, -signaling, -fps, -detector, -stun, -metrics). Flags
// override CIRCLETRACK_* environment variables and .env.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/pterm/pterm"

	"github.com/1ureka/circletrack/internal/config"
	"github.com/1ureka/circletrack/internal/metrics"
	"github.com/1ureka/circletrack/internal/session"
	"github.com/1ureka/circletrack/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := config.Load()

	// CLI flags.
	role := flag.String("role", string(cfg.Role), "Role: offer (server) or answer (client)")
	host := flag.String("host", cfg.Host, "Signaling host: listen address (answer) or remote host (offer)")
	port := flag.Int("port", cfg.Port, "Signaling port, 1~65535")
	sig := flag.String("signaling", string(cfg.Signaling), "Signaling transport: tcp or ws")
	fps := flag.Int("fps", cfg.FPS, "Animation frame rate (offer only), 1~120")
	detector := flag.String("detector", string(cfg.Detector), "Detection strategy (answer only): scan or extremal")
	stun := flag.String("stun", strings.Join(cfg.STUN, ","), "Comma-separated STUN server URLs (optional)")
	metricsAddr := flag.String("metrics", cfg.Metrics, "Serve Prometheus metrics on this address, e.g. 127.0.0.1:9090 (optional)")
	debugMode := flag.Bool("debug", cfg.Debug, "Enable debug logging")
	traceMode := flag.Bool("trace", false, "Enable trace logging, including WebRTC internals")
	flag.Parse()

	cfg.Host = *host
	cfg.Port = *port
	cfg.Signaling = config.Signaling(strings.ToLower(*sig))
	cfg.FPS = *fps
	cfg.Detector = config.Detector(strings.ToLower(*detector))
	cfg.STUN = config.SplitList(*stun)
	cfg.Metrics = *metricsAddr
	cfg.Debug = *debugMode

	switch {
	case *traceMode:
		util.EnableTrace()
	case cfg.Debug:
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("Circletrack — v%s", version))
	pterm.Println()

	if *role == "" {
		// No role anywhere → interactive mode.
		cfg.Role = askRole()
	} else {
		r, err := config.ParseRole(*role)
		if err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
		cfg.Role = r
	}

	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	if cfg.Metrics != "" {
		if err := metrics.Serve(ctx, cfg.Metrics); err != nil {
			util.LogError("%v", err)
			os.Exit(1)
		}
	}
	util.StartStatsReporter(ctx)

	if err := session.Run(ctx, cfg); err != nil {
		util.LogError("session failed: %v", err)
		os.Exit(1)
	}

	util.LogInfo("successfully closed tracking session")
}

// ---------------------------------------------------------------------------
// Helper Functions
// ---------------------------------------------------------------------------

// askRole prompts the user for the session role.
func askRole() config.Role {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithOptions([]string{"Server — Stream the animation and score reports", "Client — Detect the circle and report it"}).
		WithDefaultText("Select your role").
		Show()

	pterm.Println()

	if strings.HasPrefix(choice, "Server") {
		return config.RoleOffer
	}
	return config.RoleAnswer
}
