package server

import (
	"context"
	"crypto/rand"
	"os/signal"
	"sync"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/api"
	"github.com/fragpit/envoy-auth/internal/cache"
	"github.com/fragpit/envoy-auth/internal/certs"
	"github.com/fragpit/envoy-auth/internal/config"
	"github.com/fragpit/envoy-auth/internal/model"
	"github.com/fragpit/envoy-auth/internal/pki/vault"
	"github.com/fragpit/envoy-auth/internal/storage/memory"
	"github.com/fragpit/envoy-auth/internal/storage/postgresql"
	"github.com/fragpit/envoy-auth/internal/storage/sqlite"
	"github.com/fragpit/envoy-auth/internal/tokens"
)

func Run() error {
	var err error
	var wg sync.WaitGroup

	cfg, err := config.NewServerConfig()
	if err != nil {
		log.Errorf("Error reading configuration: %v", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer cancel()

	st, err := newStorage(cfg)
	if err != nil {
		log.Errorf("Error creating storage: %v", err)
		return err
	}

	defer func() {
		if err := st.Close(); err != nil {
			log.Errorf("Error closing storage: %v", err)
		}
	}()

	generator, err := tokens.NewGenerator(rand.Reader, cfg.Auth.TokenSize)
	if err != nil {
		log.Errorf("Error creating token generator: %v", err)
		return err
	}

	tokenCache, err := cache.New[string](
		cache.TokenValidation,
		cfg.Cache.TokenValidation.MaxSize,
		cfg.Cache.TokenValidation.TTLDuration(),
	)
	if err != nil {
		log.Errorf("Error creating token validation cache: %v", err)
		return err
	}
	defer tokenCache.Close()

	certCache, err := cache.New[*model.CertificateBundle](
		cache.ClientCerts,
		cfg.Cache.Certs.MaxSize,
		cfg.Cache.Certs.TTLDuration(),
	)
	if err != nil {
		log.Errorf("Error creating client certificate cache: %v", err)
		return err
	}
	defer certCache.Close()

	issuer, err := vault.New(&vault.Config{
		Address:    cfg.Vault.Address,
		Token:      cfg.Vault.Token,
		Mount:      cfg.Vault.PKIMount,
		Timeout:    cfg.Vault.TimeoutDuration(),
		CACert:     cfg.Vault.CACert,
		SkipVerify: cfg.Vault.SkipVerify,
	})
	if err != nil {
		log.Errorf("Error creating Vault client: %v", err)
		return err
	}

	tokenSvc := tokens.NewService(st, generator, tokenCache)
	certSvc := certs.NewService(issuer, certCache, cfg.Auth.PKIRoleName)

	authenticator, err := api.NewAuthenticator(&cfg.Auth, tokenSvc)
	if err != nil {
		log.Errorf("Error creating authenticator: %v", err)
		return err
	}

	if cfg.AdminAPIKey == "" {
		log.Warn("admin_api_key is not set, token management API is disabled")
	}

	a := api.New(cfg, tokenSvc, certSvc, authenticator, map[string]api.HealthCheck{
		"store": st.Ping,
		"vault": issuer.Healthy,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Run(ctx)
	}()

	wg.Wait()

	log.Info("Envoy-auth shut down gracefully")
	return nil
}

func newStorage(cfg *config.ServerConfig) (model.TokenRepository, error) {
	switch {
	case cfg.SQLite.DatabaseFolder != "":
		st, err := sqlite.New(cfg.SQLite.DatabaseFolder)
		if err != nil {
			return nil, err
		}
		log.Infof(
			"Successfully connected to SQLite database, folder: %s",
			cfg.SQLite.DatabaseFolder,
		)
		return st, nil

	case cfg.Postgresql.Host != "":
		st, err := postgresql.New(
			cfg.Postgresql.Host,
			cfg.Postgresql.Port,
			cfg.Postgresql.Username,
			cfg.Postgresql.Password,
			cfg.Postgresql.Database,
			cfg.Postgresql.SSLMode,
		)
		if err != nil {
			return nil, err
		}
		log.Infof(
			"Successfully connected to PostgreSQL database, server: %s:%d, database: %s",
			cfg.Postgresql.Host,
			cfg.Postgresql.Port,
			cfg.Postgresql.Database,
		)
		return st, nil

	default:
		log.Warn("No database configured, tokens are kept in memory only")
		return memory.New(), nil
	}
}
