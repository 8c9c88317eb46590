// Package gemini adapts Vertex AI Gemini models to the assistant's text Generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

var ErrEmptyResponse = errors.New("gemini: empty response")

// Options configures the Vertex AI client.
type Options struct {
	Project     string
	Location    string
	Model       string
	Timeout     time.Duration
	Temperature float32
	Logger      *slog.Logger
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Generator calls a Gemini model for each prompt.
type Generator struct {
	client  *genai.Client
	model   contentGenerator
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// New opens a Vertex AI client using application default credentials.
func New(ctx context.Context, opts Options) (*Generator, error) {
	if opts.Project == "" {
		return nil, errors.New("gemini: project is required")
	}
	if opts.Location == "" {
		opts.Location = "us-central1"
	}
	if opts.Model == "" {
		opts.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, opts.Project, opts.Location)
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	model := client.GenerativeModel(opts.Model)
	if opts.Temperature > 0 {
		model.SetTemperature(opts.Temperature)
	}

	g := newGenerator(model, opts)
	g.client = client
	return g, nil
}

func newGenerator(model contentGenerator, opts Options) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, name: opts.Model, timeout: opts.Timeout, logger: logger}
}

// Generate sends prompt as a single text part and joins the text parts of the first candidate.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	g.logger.Debug("gemini response", "model", g.name, "duration", time.Since(start))

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

// Close releases the Vertex AI client.
func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
