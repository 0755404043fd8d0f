package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/rudhramentertainment/RBackend/internal/config"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	srv, err := NewServer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("server init: %v", err)
	}

	errs := srv.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		srv.Logger.Errorw("http server exited", "err", e)
	case s := <-sig:
		srv.Logger.Infow("signal received", "signal", s.String())
	}
	srv.Shutdown()
}
