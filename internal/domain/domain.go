package domain

import (
	"log/slog"
	"time"

	"github.com/invoicegen/platform/internal/cache"
	"github.com/invoicegen/platform/internal/domain/assistant"
	"github.com/invoicegen/platform/internal/domain/invoices"
	"github.com/invoicegen/platform/internal/domain/users"
)

// Container wires domain services together.
type Container struct {
	Users     users.Service
	Invoices  invoices.Service
	Assistant assistant.Service
}

// Options configures the domain container. Nil repositories fall back to the null
// implementations and a nil Generator disables the assistant's model-backed features.
type Options struct {
	UserRepo    users.Repository
	InvoiceRepo invoices.Repository
	Generator   assistant.Generator
	Cache       cache.Cache
	CacheTTL    time.Duration
	Logger      *slog.Logger
	// BcryptCost overrides the password hashing cost when non-zero.
	BcryptCost int
}

// New constructs a domain container with provided repositories.
func New(opts Options) Container {
	userRepo := opts.UserRepo
	if userRepo == nil {
		userRepo = users.NullRepository{}
	}

	invoiceRepo := opts.InvoiceRepo
	if invoiceRepo == nil {
		invoiceRepo = invoices.NullRepository{}
	}

	userSvc := users.NewService(userRepo)
	if opts.BcryptCost != 0 {
		userSvc = users.NewServiceWithCost(userRepo, opts.BcryptCost)
	}

	invoiceSvc := invoices.NewService(invoiceRepo)

	return Container{
		Users:    userSvc,
		Invoices: invoiceSvc,
		Assistant: assistant.NewService(assistant.Options{
			Generator: opts.Generator,
			Invoices:  invoiceSvc,
			Cache:     opts.Cache,
			CacheTTL:  opts.CacheTTL,
			Logger:    opts.Logger,
		}),
	}
}
