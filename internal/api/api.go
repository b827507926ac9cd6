package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/config"
	"github.com/fragpit/envoy-auth/internal/model"
)

const (
	apiShutdownTimeout = 15 * time.Second
)

type TokenService interface {
	Allocate(ctx context.Context, tenantID, description string) (*model.EnvoyToken, error)
	GetOne(ctx context.Context, tenantID, tokenID string) (*model.EnvoyToken, error)
	GetAll(ctx context.Context, tenantID string, page model.PageRequest) (*model.Page, error)
	Update(ctx context.Context, tenantID, tokenID, description string) (*model.EnvoyToken, error)
	Delete(ctx context.Context, tenantID, tokenID string) error
	DeleteAllForTenant(ctx context.Context, tenantID string) error
}

type CertificateService interface {
	GetClientCertificate(ctx context.Context, tenantID string) (*model.CertificateBundle, error)
}

// HealthCheck reports an unhealthy dependency as a non-nil error.
type HealthCheck func(ctx context.Context) error

type API struct {
	Config        config.ServerConfig
	Tokens        TokenService
	Certs         CertificateService
	Authenticator Authenticator
	HealthChecks  map[string]HealthCheck
}

func New(
	cfg *config.ServerConfig,
	tokens TokenService,
	certs CertificateService,
	authenticator Authenticator,
	checks map[string]HealthCheck,
) *API {
	return &API{
		Config:        *cfg,
		Tokens:        tokens,
		Certs:         certs,
		Authenticator: authenticator,
		HealthChecks:  checks,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Recoverer)

	r.Get("/health", a.health)

	r.Group(func(r chi.Router) {
		r.Use(a.Authenticator.Middleware)
		r.Use(requirePrincipal)

		r.Get("/auth/cert", a.getCert)
	})

	r.Route("/api/tenant/{tenantId}/envoy-tokens", func(r chi.Router) {
		r.Use(a.adminAuthMiddleware)

		r.Post("/", a.allocateToken)
		r.Get("/", a.getTokens)
		r.Delete("/", a.deleteAllTokens)
		r.Get("/{id}", a.getToken)
		r.Put("/{id}", a.updateToken)
		r.Delete("/{id}", a.deleteToken)
	})

	return r
}

func (a *API) Run(ctx context.Context) {
	log.Infof("Starting API on %s, auth strategy: %s",
		a.Config.ListenAddress, a.Config.Auth.Strategy)

	srv := &http.Server{
		Addr:         a.Config.ListenAddress,
		Handler:      a.Router(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), apiShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Failed to shutdown API service gracefully")
	}

	log.Info("API service shut down")
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	status := make(map[string]string, len(a.HealthChecks))
	healthy := true

	for name, check := range a.HealthChecks {
		if err := check(r.Context()); err != nil {
			log.Errorf("Health check %s failed: %v", name, err)
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}

	if !healthy {
		sendResponse(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    status,
			Error: &Error{
				Code:    http.StatusServiceUnavailable,
				Message: "unhealthy",
			},
		})
		return
	}

	sendSuccessResponse(w, http.StatusOK, status)
}
