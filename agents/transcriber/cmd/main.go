package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transcript-stack/agents/transcriber"
	"transcript-stack/agents/transcriber/youtube"
	"transcript-stack/internal/models"
	"transcript-stack/shared/ai"
	"transcript-stack/shared/config"
	"transcript-stack/shared/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	invoker, err := ai.Open(ctx, &cfg.AI)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	opts := []transcriber.Option{transcriber.WithFormatMaxTokens(cfg.AI.FormatMaxTokens)}
	if cfg.YouTube.Enabled {
		client, err := youtube.NewClient(ctx, &cfg.YouTube)
		if err != nil {
			log.Fatalf("Failed to create YouTube client: %v", err)
		}
		opts = append(opts, transcriber.WithCaptions(client))
		log.Println("YouTube caption import enabled")
	}
	service := transcriber.NewService(store, invoker, opts...)

	if cfg.Inbox.Enabled {
		tracker, err := storage.NewProcessedFiles(cfg.Inbox.DataDir, 0)
		if err != nil {
			log.Fatalf("Failed to open processed file tracker: %v", err)
		}
		formatting := models.DefaultFormatting()
		// validated at load time
		formatting.Style, _ = models.ParseDocumentStyle(cfg.Inbox.FormatStyle)

		inbox, err := transcriber.NewInbox(transcriber.InboxOptions{
			Dir:           cfg.Inbox.Dir,
			MaxConcurrent: cfg.Inbox.MaxConcurrent,
			Formatting:    formatting,
		}, service, tracker)
		if err != nil {
			log.Fatalf("Failed to start inbox: %v", err)
		}
		defer inbox.Close()

		go func() {
			if err := inbox.Start(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Inbox watcher stopped: %v", err)
			}
		}()
	}

	srv := transcriber.NewServer(transcriber.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		BodyLimit:    cfg.Server.BodyLimitMB << 20,
	}, service)

	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
