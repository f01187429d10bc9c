package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"allsky/internal/worker"
)

func main() {
	configPath := flag.String("config", "", "Configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, *configPath)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, worker.ErrBuildInProgress) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
