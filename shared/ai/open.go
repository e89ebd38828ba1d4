package ai

import (
	"context"
	"time"

	"transcript-stack/shared/config"
)

// Open builds an Invoker backed by Gemini from the ai config section
func Open(ctx context.Context, cfg *config.AIConfig) (*Invoker, error) {
	backend, err := NewGemini(ctx, cfg.APIKeys(), cfg.Model)
	if err != nil {
		return nil, err
	}
	return NewInvoker(backend, time.Duration(cfg.TimeoutSeconds)*time.Second), nil
}
