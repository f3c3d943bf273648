package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/pitchside/internal/dupcheck"
	"github.com/okian/pitchside/pkg/logger"
)

// Default configuration constants.
const (
	defaultAttempts    = 50
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 2 * time.Minute
)

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:8080", "Base URL of the service")
		actor    = flag.String("actor", "coach-amara", "X-Actor-ID of the assessor")
		player   = flag.String("player", "player-lina", "Player to assess")
		date     = flag.String("date", time.Now().Format(time.DateOnly), "Assessment date YYYY-MM-DD")
		attempts = flag.Int("attempts", defaultAttempts, "Number of concurrent creates")
		workers  = flag.Int("workers", 0, "Number of concurrent workers (default: attempts)")
		timeout  = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose  = flag.Bool("verbose", false, "Log every rejected attempt")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		dupcheck.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &dupcheck.Config{
		BaseURL:  *baseURL,
		Actor:    *actor,
		PlayerID: *player,
		Date:     *date,
		Attempts: *attempts,
		Workers:  *workers,
		Timeout:  *timeout,
		Verbose:  *verbose,
	}

	if _, err := dupcheck.Run(ctx, cfg); err != nil {
		os.Stderr.WriteString("check failed: " + err.Error() + "\n")
		cancel()
		os.Exit(1)
	}
}
