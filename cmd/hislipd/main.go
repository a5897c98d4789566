// Command hislipd runs a standalone HiSLIP server, with optional session
// monitoring (web dashboard + health check) and chatter detection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ksugimoto/hislipd/chatter"
	"github.com/ksugimoto/hislipd/conn"
	"github.com/ksugimoto/hislipd/healthsvc"
	"github.com/ksugimoto/hislipd/monitor"
	"github.com/ksugimoto/hislipd/monitor/broker"
	"github.com/ksugimoto/hislipd/monitor/web"
	"github.com/ksugimoto/hislipd/server"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("hislipd", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "hislipd — HiSLIP instrument control server\n\nUsage:\n  hislipd [flags]\n\nFlags:\n")
		fs.PrintDefaults()
	}

	listen := fs.String("listen", "0.0.0.0:4880", "HiSLIP listen address")
	httpAddr := fs.String("http", "", "monitoring dashboard address (e.g. :8380), empty disables it")
	healthAddr := fs.String("health", "", "gRPC health-check address (e.g. :9091), empty disables it")
	maxSessions := fs.Int("max-sessions", 64, "maximum concurrent sessions")
	maxMessageSize := fs.Uint64("max-message-size", 500_000_000, "maximum negotiable message size in bytes")
	chatterThreshold := fs.Int("chatter-threshold", 5, "repeat-poll detection threshold (0 to disable)")
	chatterWindow := fs.Duration("chatter-window", time.Second, "repeat-poll detection time window")
	chatterCooldown := fs.Duration("chatter-cooldown", 10*time.Second, "repeat-poll alert cooldown per session+payload")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("hislipd %s\n", version)
		return
	}

	err := run(*listen, *httpAddr, *healthAddr, *maxSessions, *maxMessageSize,
		*chatterThreshold, *chatterWindow, *chatterCooldown)
	if err != nil {
		log.Fatal(err)
	}
}

func run(
	listen, httpAddr, healthAddr string,
	maxSessions int, maxMessageSize uint64,
	chatterThreshold int, chatterWindow, chatterCooldown time.Duration,
) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(256)

	var det *chatter.Detector
	if chatterThreshold > 0 {
		det = chatter.New(chatterThreshold, chatterWindow, chatterCooldown)
		log.Printf("chatter detection enabled (threshold=%d, window=%s, cooldown=%s)",
			chatterThreshold, chatterWindow, chatterCooldown)
	}
	sink := monitor.NewPipeline(b, det)

	var lc net.ListenConfig

	if healthAddr != "" {
		healthLis, err := lc.Listen(ctx, "tcp", healthAddr)
		if err != nil {
			return fmt.Errorf("listen health %s: %w", healthAddr, err)
		}
		hs := healthsvc.New()
		go func() {
			log.Printf("health check listening on %s", healthAddr)
			if err := hs.Serve(healthLis); err != nil {
				log.Printf("healthsvc serve: %v", err)
			}
		}()
		defer hs.GracefulStop()
	}

	if httpAddr != "" {
		httpLis, err := lc.Listen(ctx, "tcp", httpAddr)
		if err != nil {
			return fmt.Errorf("listen http %s: %w", httpAddr, err)
		}
		webSrv := web.New(b)
		go func() {
			log.Printf("monitoring dashboard listening on %s", httpAddr)
			if err := webSrv.Serve(httpLis); err != nil {
				log.Printf("http serve: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = webSrv.Shutdown(shutdownCtx)
		}()
	}

	cfg := server.DefaultConfig()
	cfg.BindAddress = listen
	cfg.MaxSessions = maxSessions
	cfg.MaxMessageSize = maxMessageSize

	facade := server.New(cfg, conn.Upcalls{}, sink, log.Default())

	log.Printf("hislipd listening on %s", listen)
	if err := facade.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
