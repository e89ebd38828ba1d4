package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one role-tagged entry of a model request
type Message struct {
	Role Role
	Text string
}

// Params are the sampling parameters of a single request
type Params struct {
	Temperature     float32
	MaxOutputTokens int32
	// JSON asks the backend for a JSON response body
	JSON bool
}

// Backend is a remote text-generation service
type Backend interface {
	Generate(ctx context.Context, messages []Message, params Params) (string, error)
}

// BackendFunc adapts a function to the Backend interface
type BackendFunc func(ctx context.Context, messages []Message, params Params) (string, error)

func (f BackendFunc) Generate(ctx context.Context, messages []Message, params Params) (string, error) {
	return f(ctx, messages, params)
}

// Call site temperatures
const (
	TemperatureFormat   float32 = 0.3
	TemperatureRewrite  float32 = 0.3
	TemperatureIdeas    float32 = 0.7
	TemperatureMetadata float32 = 0.1
)

// DefaultFormatMaxTokens bounds formatting output
const DefaultFormatMaxTokens int32 = 4096

// Request is one generation: system instruction lines plus user text
type Request struct {
	Instructions    []string
	Text            string
	Temperature     float32
	MaxOutputTokens int32
	JSON            bool
}

// GenerationError is returned for every failed generation. Message is human readable.
type GenerationError struct {
	Message string
	Err     error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }

var errEmptyOutput = errors.New("AI returned empty response")

// Invoker sends requests to a Backend and turns every failure into a *GenerationError
type Invoker struct {
	backend Backend
	timeout time.Duration
}

// NewInvoker wraps backend. A zero timeout leaves deadline handling to the caller's context.
func NewInvoker(backend Backend, timeout time.Duration) *Invoker {
	return &Invoker{backend: backend, timeout: timeout}
}

// Invoke returns the generated text verbatim, or a *GenerationError. It never panics.
func (inv *Invoker) Invoke(ctx context.Context, req Request) (text string, err error) {
	if inv == nil || inv.backend == nil {
		return "", &GenerationError{Message: "AI backend is not configured"}
	}

	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: AI backend panicked: %v", r)
			text, err = "", &GenerationError{Message: fmt.Sprintf("AI backend failure: %v", r)}
		}
	}()

	messages := []Message{
		{Role: RoleSystem, Text: strings.Join(req.Instructions, "\n")},
		{Role: RoleUser, Text: req.Text},
	}
	params := Params{
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxOutputTokens,
		JSON:            req.JSON,
	}

	out, err := inv.backend.Generate(ctx, messages, params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &GenerationError{Message: fmt.Sprintf("AI request timed out after %s", inv.timeout), Err: err}
		}
		return "", &GenerationError{Message: err.Error(), Err: err}
	}
	if strings.TrimSpace(out) == "" {
		return "", &GenerationError{Message: errEmptyOutput.Error(), Err: errEmptyOutput}
	}

	return out, nil
}

// ErrorMessage extracts the user facing text of an invocation error
func ErrorMessage(err error) string {
	var gerr *GenerationError
	if errors.As(err, &gerr) {
		return gerr.Message
	}
	return err.Error()
}
