package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// Gemini is a Backend for the Gemini API. With several API keys it rotates
// to the next key when the current one is rate limited.
type Gemini struct {
	model   string
	clients []*genai.Client

	mu      sync.Mutex
	current int
}

func NewGemini(ctx context.Context, apiKeys []string, model string) (*Gemini, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("at least one Gemini API key is required")
	}

	g := &Gemini{model: model}
	for i, key := range apiKeys {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  key,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client for key %d: %w", i+1, err)
		}
		g.clients = append(g.clients, client)
	}

	return g, nil
}

func (g *Gemini) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	contents, system := toContents(messages)

	temperature := params.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temperature,
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if params.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = params.MaxOutputTokens
	}
	if params.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for range g.clients {
		idx, client := g.client()

		result, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
		if err != nil {
			if isRateLimited(err) && len(g.clients) > 1 {
				log.Printf("Warning: Gemini key %d rate limited, rotating", idx+1)
				g.rotate(idx)
				lastErr = err
				continue
			}
			return "", fmt.Errorf("generate content: %w", err)
		}

		text := result.Text()
		if text == "" {
			return "", errors.New("empty response from Gemini")
		}
		return text, nil
	}

	return "", fmt.Errorf("all API keys exhausted: %w", lastErr)
}

func (g *Gemini) client() (int, *genai.Client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.clients[g.current]
}

// rotate moves past idx unless another request already rotated
func (g *Gemini) rotate(idx int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == idx {
		g.current = (g.current + 1) % len(g.clients)
	}
}

func toContents(messages []Message) ([]*genai.Content, string) {
	var (
		contents []*genai.Content
		system   []string
	)
	for _, m := range messages {
		if m.Role == RoleSystem {
			if m.Text != "" {
				system = append(system, m.Text)
			}
			continue
		}
		contents = append(contents, genai.NewContentFromText(m.Text, genai.RoleUser))
	}
	return contents, strings.Join(system, "\n")
}

func isRateLimited(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
