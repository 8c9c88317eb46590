package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/invoicegen/platform/internal/config"
	"github.com/invoicegen/platform/internal/database"
	"github.com/invoicegen/platform/internal/domain"
	"github.com/invoicegen/platform/internal/domain/invoices"
	"github.com/invoicegen/platform/internal/domain/users"
	"github.com/invoicegen/platform/internal/logger"
	pgstorage "github.com/invoicegen/platform/internal/storage/postgres"
)

const (
	demoEmail    = "demo@example.com"
	demoPassword = "demo-password"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog := logger.New("development")
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logr := logger.New(cfg.Env)

	if cfg.DataBackend != "postgres" {
		logr.Error("seed command requires DATA_BACKEND=postgres")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.Connect(ctx, database.Options{
		Driver:          cfg.DatabaseDriver,
		DSN:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		Logger:          logr,
	})
	if err != nil {
		logr.Error("failed to connect database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	migrator := database.NewSQLMigrator(db.DB.DB, database.MigrationsFS(), database.MigrationsDir, logr)
	if err := db.RunMigrations(ctx, migrator); err != nil {
		logr.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	container := domain.New(domain.Options{
		UserRepo:    pgstorage.NewUserRepository(db.DB),
		InvoiceRepo: pgstorage.NewInvoiceRepository(db.DB),
		Logger:      logr,
	})

	user, err := container.Users.Register(ctx, users.RegisterInput{
		Email:    demoEmail,
		Name:     "Demo Owner",
		Password: demoPassword,
	})
	if errors.Is(err, users.ErrEmailExists) {
		logr.Info("demo user already present; nothing to seed", "email", demoEmail)
		return
	}
	if err != nil {
		logr.Error("failed to seed user", "email", demoEmail, "err", err)
		os.Exit(1)
	}

	business, address, phone := "Demo Studio LLC", "12 Harbor St, St. Augustine, FL", "904-555-0100"
	user, err = container.Users.UpdateProfile(ctx, user.ID, users.ProfileInput{
		BusinessName: &business,
		Address:      &address,
		Phone:        &phone,
	})
	if err != nil {
		logr.Error("failed to seed profile", "user_id", user.ID, "err", err)
		os.Exit(1)
	}

	from := invoices.Party{BusinessName: business, Email: demoEmail, Address: address, Phone: phone}
	now := time.Now().UTC().Truncate(24 * time.Hour)

	samples := []invoices.CreateInput{
		{
			BillFrom:     from,
			BillTo:       invoices.Party{ClientName: "Harbor Coffee Co", Email: "ap@harborcoffee.example"},
			PaymentTerms: "Net 30",
			Items: []invoices.LineItem{
				{Name: "Logo refresh", Quantity: 1, UnitPrice: 85000, TaxPercent: 7},
				{Name: "Menu layout", Quantity: 3, UnitPrice: 12500, TaxPercent: 7},
			},
		},
		{
			InvoiceDate:  now.AddDate(0, 0, -45),
			BillFrom:     from,
			BillTo:       invoices.Party{ClientName: "Lighthouse Tours", Email: "billing@lighthouse.example"},
			PaymentTerms: "Net 15",
			Items: []invoices.LineItem{
				{Name: "Website maintenance", Quantity: 4, UnitPrice: 9000},
			},
		},
		{
			InvoiceDate:  now.AddDate(0, 0, -20),
			BillFrom:     from,
			BillTo:       invoices.Party{ClientName: "Old Town Bakery", Email: "owner@oldtownbakery.example"},
			PaymentTerms: "Due on Receipt",
			Status:       invoices.StatusPaid,
			Items: []invoices.LineItem{
				{Name: "Product photography", Quantity: 2.5, UnitPrice: 15000, TaxPercent: 6.5},
			},
		},
	}

	for _, in := range samples {
		inv, err := container.Invoices.Create(ctx, user.ID, in)
		if err != nil {
			logr.Error("failed to seed invoice", "client", in.BillTo.ClientName, "err", err)
			os.Exit(1)
		}
		logr.Info("seeded invoice", "invoice_id", inv.ID, "number", inv.InvoiceNumber, "total", inv.Total.String())
	}

	marked, err := container.Invoices.MarkOverdue(ctx, time.Now())
	if err != nil {
		logr.Error("failed to mark overdue invoices", "err", err)
		os.Exit(1)
	}

	fmt.Printf("User: %s (%s) password %q\n", user.Name, user.Email, demoPassword)
	fmt.Printf("Invoices: %d created, %d overdue\n", len(samples), marked)

	logr.Info("seed complete")
}
