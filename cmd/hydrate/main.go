// Package main hydrates a rendered page headlessly and prints the mounted
// view.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/statehouse/internal/cmd/hydrate"
	"github.com/louisbranch/statehouse/internal/platform/config"
)

func main() {
	cfg, err := hydrate.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[HYDRATE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := hydrate.Run(ctx, cfg); err != nil {
		config.Exitf("hydrate: %v", err)
	}
}
