package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-stack/agents/digest"
	"transcript-stack/shared/config"
	"transcript-stack/shared/scheduler"
)

func main() {
	once := flag.Bool("once", false, "run a single digest and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	agent := digest.NewAgent(cfg)
	s := scheduler.New(scheduler.Options{
		Schedule:   cfg.Digest.Schedule,
		HealthPort: cfg.Monitoring.HealthPort,
		RunOnStart: cfg.Digest.RunOnStart,
		RunTimeout: time.Duration(cfg.Digest.RunTimeoutMinutes) * time.Minute,
	}, agent)

	if *once {
		fmt.Println("Running once...")
		if err := agent.Initialize(); err != nil {
			log.Fatalf("Failed to initialize agent: %v", err)
		}
		if err := s.RunOnce(ctx); err != nil {
			log.Fatalf("Failed to run: %v", err)
		}
		return
	}

	fmt.Println("Starting scheduler...")
	if err := s.Start(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("Scheduler failed: %v", err)
	}
}
