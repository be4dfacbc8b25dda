// Package app composes the wish service.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring and lifecycle
//	├── domain/             # Plain data types (user, wish, tier, payment)
//	├── storage/            # Store interfaces and implementations
//	│   ├── interfaces.go
//	│   ├── memory/         # In-memory stores for tests and local runs
//	│   ├── postgres/       # PostgreSQL stores
//	│   └── redis/          # Optional Redis wish sequence
//	├── services/           # ledger, tiers, wishes, payments, retention
//	├── httpapi/            # HTTP handlers and routing
//	├── metrics/            # Prometheus collectors
//	├── system/             # Lifecycle manager for background services
//	└── runtime/            # Process wiring: config, database, server
//
// # Dependency Direction
//
//	cmd/wishbank/
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app/httpapi
//	      │                        │
//	      ▼                        ▼
//	internal/app (composition) ◄───┘
//	      │
//	      ├──► internal/app/services/*
//	      └──► internal/app/storage/*
//
// Services never import httpapi or runtime. Stores never import services.
package app
