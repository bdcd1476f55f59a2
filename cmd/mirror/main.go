package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gihan9a/braidtrack/internal/client"
)

func main() {
	urlFlag := flag.String("url", "http://localhost:3000/players/alice", "Resource to mirror")
	onceFlag := flag.Bool("once", false, "Fetch the snapshot once instead of subscribing")
	verboseFlag := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	c := client.New(*urlFlag, func(path string, value any) {
		fmt.Printf("Updating %s %v\n", path, value)
	}, client.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	if *onceFlag {
		err = c.Fetch(ctx)
	} else {
		err = c.Run(ctx)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Mirror failed: %v", err)
	}
}
