// Package assistant implements the AI-assisted invoice features on top of a text Generator.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/invoicegen/platform/internal/cache"
	"github.com/invoicegen/platform/internal/domain/invoices"
)

var (
	ErrUnavailable = errors.New("assistant: no generator configured")
	ErrBadResponse = errors.New("assistant: unusable model response")
)

const (
	maxInputText    = 10000
	noDataInsight   = "No invoice data available to generate insights yet."
	defaultCacheTTL = 10 * time.Minute
	insightsPrefix  = "insights:"
)

// Generator turns a prompt into model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Reminder is a drafted payment reminder for an invoice's client.
type Reminder struct {
	ReminderText string `json:"reminderText"`
	ClientEmail  string `json:"clientEmail"`
}

// Service exposes the assistant features.
type Service interface {
	ParseInvoiceText(ctx context.Context, text string) (map[string]interface{}, error)
	GenerateReminder(ctx context.Context, userID, invoiceID string) (Reminder, error)
	DashboardSummary(ctx context.Context, userID string) ([]string, error)
}

// Options configures the assistant. Generator may be nil, in which case model-backed
// operations return ErrUnavailable.
type Options struct {
	Generator Generator
	Invoices  invoices.Service
	Cache     cache.Cache
	CacheTTL  time.Duration
	Logger    *slog.Logger
}

type service struct {
	gen      Generator
	invoices invoices.Service
	cache    cache.Cache
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService builds the assistant service.
func NewService(opts Options) Service {
	c := opts.Cache
	if c == nil {
		c = cache.NewMemory()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &service{gen: opts.Generator, invoices: opts.Invoices, cache: c, ttl: ttl, logger: logger}
}

func (s *service) ParseInvoiceText(ctx context.Context, text string) (map[string]interface{}, error) {
	text = strings.TrimSpace(text)
	if err := validation.Validate(text, validation.Required, validation.Length(1, maxInputText)); err != nil {
		return nil, validation.Errors{"text": err}
	}
	if s.gen == nil {
		return nil, ErrUnavailable
	}

	out, err := s.gen.Generate(ctx, parseInvoicePrompt(text))
	if err != nil {
		return nil, fmt.Errorf("generate parsed invoice: %w", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(extractJSON(out, '{', '}')), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return parsed, nil
}

func (s *service) GenerateReminder(ctx context.Context, userID, invoiceID string) (Reminder, error) {
	if err := validation.Validate(invoiceID, validation.Required); err != nil {
		return Reminder{}, validation.Errors{"invoiceId": err}
	}

	inv, err := s.invoices.Get(ctx, userID, invoiceID)
	if err != nil {
		return Reminder{}, err
	}
	if s.gen == nil {
		return Reminder{}, ErrUnavailable
	}

	out, err := s.gen.Generate(ctx, reminderPrompt(inv))
	if err != nil {
		return Reminder{}, fmt.Errorf("generate reminder: %w", err)
	}
	text := strings.TrimSpace(out)
	if text == "" {
		return Reminder{}, ErrBadResponse
	}
	return Reminder{ReminderText: text, ClientEmail: inv.BillTo.Email}, nil
}

type cachedInsights struct {
	Fingerprint string   `json:"fingerprint"`
	Insights    []string `json:"insights"`
}

func (s *service) DashboardSummary(ctx context.Context, userID string) ([]string, error) {
	sum, err := s.invoices.Summarize(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sum.TotalInvoices == 0 {
		return []string{noDataInsight}, nil
	}
	if s.gen == nil {
		return nil, ErrUnavailable
	}

	key := insightsPrefix + userID
	fp := fingerprint(sum)
	if raw, err := s.cache.Get(ctx, key); err == nil {
		var hit cachedInsights
		if json.Unmarshal(raw, &hit) == nil && hit.Fingerprint == fp && len(hit.Insights) > 0 {
			return hit.Insights, nil
		}
		// Stale or unreadable; drop it so a failed regeneration cannot leave it behind.
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("insights cache delete failed", "user_id", userID, "err", err)
		}
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("insights cache read failed", "user_id", userID, "err", err)
	}

	out, err := s.gen.Generate(ctx, insightsPrompt(sum))
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	insights := parseInsights(out)
	if len(insights) == 0 {
		return nil, ErrBadResponse
	}

	if raw, err := json.Marshal(cachedInsights{Fingerprint: fp, Insights: insights}); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn("insights cache write failed", "user_id", userID, "err", err)
		}
	}
	return insights, nil
}
