package app

import (
	"context"
	"fmt"
	"time"

	"github.com/wishbank/wishbank/internal/app/domain/payment"
	"github.com/wishbank/wishbank/internal/app/services/ledger"
	"github.com/wishbank/wishbank/internal/app/services/payments"
	"github.com/wishbank/wishbank/internal/app/services/retention"
	"github.com/wishbank/wishbank/internal/app/services/tiers"
	"github.com/wishbank/wishbank/internal/app/services/wishes"
	"github.com/wishbank/wishbank/internal/app/storage"
	"github.com/wishbank/wishbank/internal/app/storage/memory"
	"github.com/wishbank/wishbank/internal/app/system"
	"github.com/wishbank/wishbank/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users    storage.UserStore
	Events   storage.PaymentEventStore
	Wishes   storage.WishStore
	Sequence storage.SequenceStore
	Health   storage.HealthChecker
}

// Options carries the non-storage wiring.
type Options struct {
	Provider          payments.Provider
	Bundles           []payment.Bundle
	WebhookEventTypes []string
	RetentionSchedule string
	EventRetention    time.Duration
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	health  storage.HealthChecker

	Ledger    *ledger.Service
	Tiers     *tiers.Service
	Wishes    *wishes.Service
	Payments  *payments.Service
	Retention *retention.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Events == nil {
		stores.Events = mem
	}
	if stores.Wishes == nil {
		stores.Wishes = mem
	}
	if stores.Sequence == nil {
		stores.Sequence = mem
	}
	if stores.Health == nil {
		stores.Health = mem
	}

	catalog, err := payments.NewCatalog(opts.Bundles)
	if err != nil {
		return nil, fmt.Errorf("bundle catalog: %w", err)
	}

	ledgerService := ledger.New(stores.Users, stores.Events, log)
	tierService := tiers.New(stores.Sequence, log)
	wishService := wishes.New(ledgerService, tierService, stores.Wishes, log)
	paymentService := payments.New(catalog, opts.Provider, ledgerService, payments.Options{
		EventTypes: opts.WebhookEventTypes,
	}, log)
	retentionService, err := retention.New(stores.Events, retention.Options{
		Schedule:  opts.RetentionSchedule,
		Retention: opts.EventRetention,
	}, log)
	if err != nil {
		return nil, err
	}

	manager := system.NewManager()
	if err := manager.Register(retentionService); err != nil {
		return nil, fmt.Errorf("register %s: %w", retentionService.Name(), err)
	}

	return &Application{
		manager:   manager,
		log:       log,
		health:    stores.Health,
		Ledger:    ledgerService,
		Tiers:     tierService,
		Wishes:    wishService,
		Payments:  paymentService,
		Retention: retentionService,
	}, nil
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Healthy pings the backing store.
func (a *Application) Healthy(ctx context.Context) error {
	return a.health.Ping(ctx)
}
