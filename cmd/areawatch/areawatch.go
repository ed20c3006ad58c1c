package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/areawatch/areawatch/pkg/detect"
	"github.com/areawatch/areawatch/server"
	"github.com/areawatch/areawatch/server/config"
	"github.com/coreos/go-systemd/daemon"
	"github.com/cyclopcam/logs"
)

func main() {
	parser := argparse.NewParser("areawatch", "Multi-camera area monitoring")
	configFile := parser.String("c", "config", &argparse.Options{Help: "Configuration file", Default: "areawatch.json"})
	port := parser.String("p", "port", &argparse.Options{Help: "HTTP listen address", Default: ":8080"})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	// Object detection is an external collaborator. Until a real
	// detector is plugged in here, the null detector keeps the rest of
	// the pipeline running.
	srv, err := server.NewServer(logger, cfg, detect.NewNullDetector())
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	srv.Start()

	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	go srv.RunCleanupLoop(cleanupCtx, cfg.RetentionDays)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		logger.Infof("Received signal %v, shutting down", s)
		cancelCleanup()
		srv.Shutdown()
	}()

	// Tell systemd that we're alive
	daemon.SdNotify(false, daemon.SdNotifyReady)

	if err := srv.ListenHTTP(*port); err != nil {
		logger.Errorf("ListenHTTP returned: %v", err)
		os.Exit(1)
	}
}
