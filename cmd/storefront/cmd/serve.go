package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/server"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/iam"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rbac"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/telemetry"
)

var autoMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront identity API server",
	Long:  `Starts the HTTP server that provisions users, reconciles token roles and answers permission checks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability, logger)
		if err != nil {
			return fmt.Errorf("initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				logger.WithError(err).Warn("telemetry shutdown failed")
			}
		}()

		if autoMigrate {
			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			err = runMigrations(ctx, db)
			db.Close()
			if err != nil {
				return err
			}
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.db.Close()

		if cfg.RBAC.SyncOnStart {
			res, err := a.rbac.SyncPermissions(ctx)
			if err != nil {
				return fmt.Errorf("sync permissions: %w", err)
			}
			logger.WithFields(logrus.Fields{
				"seeded":                res.Seeded,
				"granted_to_super_role": res.GrantedToSuperRole,
			}).Info("permission catalog synced")
		}

		authenticator, err := iam.NewAuthenticator(cfg.OIDC)
		if err != nil {
			return fmt.Errorf("configure authentication: %w", err)
		}

		var relyingParty *auth.RelyingParty
		if cfg.OIDC.SSOEnabled() {
			secure := strings.HasPrefix(cfg.ServerURL, "https")
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.OIDC.Issuer, cfg.OIDC.SSO, secure)
			if err != nil {
				return fmt.Errorf("configure SSO login: %w", err)
			}
			logger.WithField("issuer", cfg.OIDC.Issuer).Info("SSO login enabled")
		}

		r, err := server.NewRouter(server.RouterOptions{
			RBAC:           a.rbac,
			RoleSync:       a.roleSync,
			Sessions:       a.sessions,
			Authenticator:  authenticator,
			RelyingParty:   relyingParty,
			Logger:         logger,
			RequestLogging: true,
		})
		if err != nil {
			return fmt.Errorf("build router: %w", err)
		}

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		refreshCtx, stopRefresh := context.WithCancel(context.Background())
		defer stopRefresh()
		if cfg.RBAC.RefreshInterval > 0 {
			go refreshGrants(refreshCtx, a.rbac, cfg.RBAC.RefreshInterval)
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.WithFields(logrus.Fields{
				"addr": cfg.ServerAddr,
				"url":  cfg.ServerURL,
			}).Info("starting server")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		// SIGHUP reloads grants written by another instance.
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case sig := <-reload:
				logger.WithField("signal", sig.String()).Info("refreshing grant snapshot")
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := a.rbac.RefreshGrantSnapshot(rctx); err != nil {
					logger.WithError(err).Error("manual grant refresh failed")
				}
				cancel()

			case sig := <-shutdown:
				logger.WithField("signal", sig.String()).Info("shutting down gracefully")
				stopRefresh()

				sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(sctx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				logger.Info("server stopped")
				return nil
			}
		}
	},
}

func refreshGrants(ctx context.Context, svc rbac.Service, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := svc.RefreshGrantSnapshot(ctx); err != nil {
				logger.WithError(err).Error("background grant refresh failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations before serving")
	rootCmd.AddCommand(serveCmd)
}
