package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-otp-service/internal/application/delivery"
	"github.com/go-otp-service/internal/application/otp"
	"github.com/go-otp-service/internal/config"
	"github.com/go-otp-service/internal/infrastructure/awsconf"
	"github.com/go-otp-service/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-otp-service/internal/infrastructure/jwt"
	"github.com/go-otp-service/internal/infrastructure/sns"
	"github.com/go-otp-service/internal/pkg/logger"
	transporthttp "github.com/go-otp-service/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		slog.Error("otp service exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.IsProduction(), cfg.LogLevel)
	slog.SetDefault(log)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	awsCfg, err := awsconf.Load(ctx, cfg)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	dynamoClient := dynamo.NewClient(awsCfg)
	if cfg.DynamoBootstrap {
		if err := dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTable); err != nil {
			return fmt.Errorf("bootstrap dynamodb: %w", err)
		}
	}

	sealer, err := newSealer(cfg, awsCfg)
	if err != nil {
		return err
	}

	var smsSender delivery.SMSSender
	if cfg.SMSEnabled {
		smsSender = sns.NewSender(sns.NewClient(awsCfg))
	} else {
		log.Warn("sms delivery disabled")
	}
	emailSender, err := newEmailSender(cfg, awsCfg)
	if err != nil {
		return err
	}
	if emailSender == nil {
		log.Warn("email delivery disabled")
	}

	svc := otp.NewService(otp.ServiceDeps{
		Store:      dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTable),
		Sealer:     sealer,
		Dispatcher: delivery.NewDispatcher(smsSender, emailSender),
		Policy:     policyFrom(cfg.OTP),
		Logger:     log,
	})

	deps := &transporthttp.Deps{OTP: svc, Logger: log}
	if cfg.APIJWTPublicKey != "" {
		v, err := jwtinfra.NewVerifier(cfg.APIJWTPublicKey)
		if err != nil {
			return fmt.Errorf("load caller jwt key: %w", err)
		}
		deps.Verifier = v
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.AppPort),
		Handler:           transporthttp.NewRouter(ctx, cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "table", cfg.DynamoTable, "sealer", cfg.Sealer)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
