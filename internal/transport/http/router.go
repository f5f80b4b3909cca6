package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-otp-service/internal/application/otp"
	"github.com/go-otp-service/internal/config"
	"github.com/go-otp-service/internal/transport/http/handler"
	appmiddleware "github.com/go-otp-service/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds what the router needs beyond configuration.
type Deps struct {
	OTP otp.Service
	// Verifier enables bearer-token caller auth on the OTP routes; nil leaves them open.
	Verifier appmiddleware.TokenVerifier
	Logger   *slog.Logger
}

// NewRouter builds and returns the application router. Background work
// started for the router ends when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(appmiddleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"OPTIONS", "POST", "GET"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := func(next http.Handler) http.Handler { return next }
	if deps.Verifier != nil {
		authMw = appmiddleware.Auth(deps.Verifier)
	}
	otpRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.TrustProxyHeaders)

	healthH := handler.NewHealthHandler()
	otpH := handler.NewOTPHandler(deps.OTP, log)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(otpRL.Limit)
			r.Use(authMw)

			r.Post("/otp/generate", otpH.Issue)
			r.Post("/otp/verify", otpH.Verify)
		})
	})

	return r
}
