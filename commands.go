package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yeremiapane/pharmacy-marketplace/config"
	"github.com/yeremiapane/pharmacy-marketplace/database"
	"github.com/yeremiapane/pharmacy-marketplace/models"
	"github.com/yeremiapane/pharmacy-marketplace/realtime"
	"github.com/yeremiapane/pharmacy-marketplace/router"
	"github.com/yeremiapane/pharmacy-marketplace/services"
	"github.com/yeremiapane/pharmacy-marketplace/utils"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var envFile string

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the websocket hub and the daily expiration sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the expiration sweep once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := bootstrap()
			if err != nil {
				return err
			}
			notifications := services.NewNotificationService(db, nil)
			sweep := services.NewExpirationSweep(db, notifications, services.NewAuditService(db), cfg.Sweep.Hour, cfg.Sweep.Minute)
			report, err := sweep.RunManually(contextOrBackground(cmd.Context()), services.Actor{Role: models.RoleAdmin, Origin: "cli"})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d skipped=%d created=%d notified=%d duration=%s\n",
				report.Scanned, report.Skipped, report.Created, report.Notified, report.Duration)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, err := bootstrap()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

// bootstrap loads configuration, sets up logging and opens the migrated
// database.
func bootstrap() (*config.Config, *gorm.DB, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, err
	}
	utils.InitLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, nil, fmt.Errorf("auto migrate: %w", err)
	}
	if cfg.ChangeFeed.Enabled {
		if err := database.ExecuteTriggers(db); err != nil {
			return nil, nil, fmt.Errorf("install change triggers: %w", err)
		}
	}
	utils.InfoLogger.WithField("driver", cfg.DBDriver).Info("database ready")
	return cfg, db, nil
}

func runServe(parent context.Context) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := realtime.NewHub()
	audit := services.NewAuditService(db)
	notifications := services.NewNotificationService(db, hub)
	publisher := services.NewPaymentEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	gateway := services.NewGuiddiniService(services.GuiddiniConfig{
		BaseURL:   cfg.Guiddini.BaseURL,
		AppKey:    cfg.Guiddini.AppKey,
		AppSecret: cfg.Guiddini.AppSecret,
		Timeout:   cfg.Guiddini.Timeout,
	})
	payments := services.NewPaymentService(db, gateway, audit, services.NewPaymentMonitor(), publisher, notifications)
	sweep := services.NewExpirationSweep(db, notifications, audit, cfg.Sweep.Hour, cfg.Sweep.Minute)
	changes := services.NewChangeMonitor(db, hub, cfg.ChangeFeed.Interval)

	handler := router.SetupRouter(cfg, router.Dependencies{
		DB:            db,
		JWT:           utils.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL),
		Hub:           hub,
		Audit:         audit,
		Payments:      payments,
		Statements:    services.NewStatementService(db),
		Notifications: notifications,
		Sales:         services.NewSaleService(db, audit),
		Supply:        services.NewSupplyService(db, notifications),
		Sweep:         sweep,
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(parent), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.Sweep.Enabled {
		sweep.Start(ctx)
	}
	if cfg.ChangeFeed.Enabled {
		changes.Start(ctx)
	}

	g.Go(func() error {
		utils.InfoLogger.WithFields(logrus.Fields{
			"addr":  cfg.Addr(),
			"env":   cfg.AppEnv,
			"kafka": len(cfg.Kafka.Brokers) > 0,
		}).Info("starting pharmacy marketplace server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		utils.InfoLogger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		hub.CloseAll()
		err := server.Shutdown(shutdownCtx)
		if cfg.Sweep.Enabled {
			sweep.Stop()
		}
		if cfg.ChangeFeed.Enabled {
			changes.Stop()
		}
		if cerr := publisher.Close(); cerr != nil {
			utils.ErrorLogger.Errorf("closing payment event publisher: %v", cerr)
		}
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		if err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		utils.InfoLogger.Info("server stopped gracefully")
		return nil
	})

	return g.Wait()
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
