package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/pulse/internal/seedevents"
	"github.com/okian/pulse/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents   = 1000
	defaultNumUsers    = 50
	defaultNumSkills   = 10
	defaultSpanDays    = 14
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultSeedTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9090", "Base URL of the service")
		numEvents = flag.Int("events", defaultNumEvents, "Number of events to generate and submit")
		numUsers  = flag.Int("users", defaultNumUsers, "Number of distinct users")
		numSkills = flag.Int("skills", defaultNumSkills, "Number of distinct skills")
		spanDays  = flag.Int("span", defaultSpanDays, "Spread timestamps over the last N days")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		seedevents.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultSeedTimeout)
	defer cancel()

	config := &seedevents.Config{
		BaseURL:   *baseURL,
		NumEvents: *numEvents,
		NumUsers:  *numUsers,
		NumSkills: *numSkills,
		SpanDays:  *spanDays,
		Workers:   *workers,
		Timeout:   *timeout,
		Verbose:   *verbose,
	}

	if err := seedevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("seeding failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
