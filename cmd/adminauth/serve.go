package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/adminauth/internal/audit"
	"github.com/dropDatabas3/adminauth/internal/config"
	"github.com/dropDatabas3/adminauth/internal/email"
	"github.com/dropDatabas3/adminauth/internal/geoip"
	"github.com/dropDatabas3/adminauth/internal/http/controllers"
	"github.com/dropDatabas3/adminauth/internal/http/router"
	authsvc "github.com/dropDatabas3/adminauth/internal/http/services/auth"
	sessionssvc "github.com/dropDatabas3/adminauth/internal/http/services/sessions"
	"github.com/dropDatabas3/adminauth/internal/lockout"
	"github.com/dropDatabas3/adminauth/internal/observability/logger"
	"github.com/dropDatabas3/adminauth/internal/rate"
	"github.com/dropDatabas3/adminauth/internal/security/password"
	"github.com/dropDatabas3/adminauth/internal/session"
	"github.com/dropDatabas3/adminauth/internal/store/core"
	"github.com/dropDatabas3/adminauth/internal/store/memory"
	"github.com/dropDatabas3/adminauth/internal/store/pg"
	"github.com/dropDatabas3/adminauth/internal/twofactor"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logEnv := "dev"
	if cfg.IsProd() {
		logEnv = "prod"
	}
	logger.Init(logger.Config{Env: logEnv, Level: cfg.Log.Level, ServiceName: "adminauth"})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store: Postgres con DSN, memoria para desarrollo local.
	var store core.Repository
	if cfg.Postgres.DSN != "" {
		pgStore, err := pg.New(ctx, cfg.Postgres.DSN, pg.Options{MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return err
		}
		defer pgStore.Close()
		store = pgStore
		log.Info("store postgres listo")
	} else {
		store = memory.New()
		log.Warn("sin postgres.dsn: usando store en memoria (sólo desarrollo)")
	}

	// Rate limiters: Redis si hay más de una instancia, si no en proceso.
	var loginLimiter, resetIPLimiter, resetEmailLimiter rate.Limiter
	if cfg.Redis.Enabled {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		loginLimiter = rate.NewRedisLimiter(client, "rl:login:", cfg.Rate.LoginMax, cfg.Rate.LoginWindow)
		resetIPLimiter = rate.NewRedisLimiter(client, "rl:resetip:", cfg.Rate.ResetMax, cfg.Rate.ResetWindow)
		resetEmailLimiter = rate.NewRedisLimiter(client, "rl:resetmail:", cfg.Rate.ResetMax, cfg.Rate.ResetWindow)
		log.Info("rate limit distribuido vía redis", logger.String("addr", cfg.Redis.Addr))
	} else {
		loginLimiter = rate.NewMemoryLimiter(cfg.Rate.LoginMax, cfg.Rate.LoginWindow)
		resetIPLimiter = rate.NewMemoryLimiter(cfg.Rate.ResetMax, cfg.Rate.ResetWindow)
		resetEmailLimiter = rate.NewMemoryLimiter(cfg.Rate.ResetMax, cfg.Rate.ResetWindow)
	}

	// Correo: SMTP real o echo para desarrollo.
	var sender email.Sender
	if cfg.SMTP.Enabled {
		smtp, err := email.NewSMTPSender(email.SMTPConfig{
			Host:        cfg.SMTP.Host,
			Port:        cfg.SMTP.Port,
			Username:    cfg.SMTP.Username,
			Password:    cfg.SMTP.Password,
			From:        cfg.SMTP.From,
			StartTLS:    cfg.SMTP.StartTLS,
			InsecureTLS: cfg.SMTP.InsecureTLS,
		})
		if err != nil {
			return err
		}
		sender = smtp
	} else {
		sender = email.NewEchoSender()
		log.Warn("smtp deshabilitado: los correos se loguean en vez de enviarse")
	}
	mailer := email.NewMailer(sender, cfg.Email.FromName)

	geo := geoip.New(cfg.GeoIPEnabled)
	recorder := audit.NewRecorder(store, geo)
	sessions := session.NewManager(store, geo, []byte(cfg.JWT.Secret), cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	locks := lockout.New(store, lockout.Policy{
		Threshold:         cfg.Lockout.Threshold,
		LockDuration:      cfg.Lockout.LockDuration,
		EscalateAt:        cfg.Lockout.EscalateAt,
		EscalatedDuration: cfg.Lockout.EscalatedDuration,
	})
	twofa := twofactor.New(store, mailer, cfg.TOTPIssuer)

	authService := authsvc.New(authsvc.Deps{
		Store:          store,
		Lockout:        locks,
		TwoFactor:      twofa,
		Sessions:       sessions,
		Mailer:         mailer,
		Audit:          recorder,
		ResetLimiter:   resetEmailLimiter,
		PasswordPolicy: password.DefaultPolicy,
		HashParams:     password.Default,
		TempTokenKey:   []byte(cfg.JWT.Secret),
		BaseURL:        cfg.HTTP.BaseURL,
	})
	sessionService := sessionssvc.New(sessionssvc.Deps{Manager: sessions, Audit: recorder})

	handler := router.New(router.Deps{
		Auth:         controllers.NewAuthController(authService, cfg.IsProd()),
		Sessions:     controllers.NewSessionController(sessionService, cfg.IsProd()),
		Manager:      sessions,
		LoginLimiter: loginLimiter,
		ResetLimiter: resetIPLimiter,
		Store:        store,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("servidor escuchando", logger.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("apagando servidor")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
