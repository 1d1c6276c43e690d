// Copyright 2026 The DealDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dealdesk/dealdesk/internal/audit"
	"github.com/dealdesk/dealdesk/internal/authz"
	"github.com/dealdesk/dealdesk/internal/config"
	"github.com/dealdesk/dealdesk/internal/observability/logger"
	"github.com/dealdesk/dealdesk/internal/observability/metrics"
	"github.com/dealdesk/dealdesk/internal/observability/tracing"
	"github.com/dealdesk/dealdesk/internal/permission"
	"github.com/dealdesk/dealdesk/internal/rbac"
	"github.com/dealdesk/dealdesk/internal/role"
	"github.com/dealdesk/dealdesk/internal/store/postgres"
	transportHTTP "github.com/dealdesk/dealdesk/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting dealdesk authorization service")

	// Phase: CLI Commands
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(cfg); err != nil {
			fmt.Printf("Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "seed" {
		if err := runSeed(cfg, os.Args[2:]); err != nil {
			fmt.Printf("Seeding failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Initialize context
	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}
	var authzMetrics *metrics.AuthzMetrics
	if meter != nil {
		authzMetrics, err = metrics.NewAuthzMetrics(meter)
		if err != nil {
			slog.Error("failed to initialize authz metrics", logger.Error(err))
		}
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	orgRepo := postgres.NewOrganizationRepository(db)
	permRepo := postgres.NewPermissionRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	rolePermRepo := postgres.NewRolePermissionRepository(db)
	userRoleRepo := postgres.NewUserRoleRepository(db)
	auditRepo := postgres.NewAuditRepository(db)

	// Initialize services
	auditService := audit.NewService(auditRepo)
	roleService := role.NewService(roleRepo, rolePermRepo, auditService)
	authzService := authz.NewService(userRoleRepo, roleRepo, rolePermRepo, auditService, authzMetrics)
	seeder := rbac.NewSeeder(roleService, permRepo, auditService)

	// The permission catalog must be complete before any grant resolves.
	catalogSeeder := permission.NewSeeder(permRepo)
	if _, err := catalogSeeder.SeedMissing(ctx); err != nil {
		slog.Error("failed to seed permission catalog", logger.Error(err))
		os.Exit(1)
	}

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		roleService,
		authzService,
		auditService,
		orgRepo,
		permRepo,
		seeder,
		[]byte(cfg.Auth.TokenSigningKey),
		cfg.Auth.TokenIssuer,
	)

	// Create router
	router := transportHTTP.NewRouter(handler, rateLimiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func connect(cfg *config.Config) (*postgres.DB, error) {
	return postgres.New(context.Background(), postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}

// runSeed fills the permission catalog and, when organization ids are given,
// provisions their default roles.
func runSeed(cfg *config.Config, orgIDs []string) error {
	ctx := context.Background()
	db, err := connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	permRepo := postgres.NewPermissionRepository(db)
	auditService := audit.NewService(postgres.NewAuditRepository(db))
	roleService := role.NewService(postgres.NewRoleRepository(db), postgres.NewRolePermissionRepository(db), auditService)
	seeder := rbac.NewSeeder(roleService, permRepo, auditService)

	inserted, err := permission.NewSeeder(permRepo).SeedMissing(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Permission catalog: %d entries added.\n", inserted)

	for _, orgID := range orgIDs {
		created, err := seeder.SeedOrganizationDefaults(ctx, orgID)
		if err != nil {
			return fmt.Errorf("organization %s: %w", orgID, err)
		}
		fmt.Printf("Organization %s: %d default roles created.\n", orgID, created)
	}

	return nil
}
