package api

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"slices"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/config"
	"github.com/fragpit/envoy-auth/internal/model"
)

const (
	headerTenantID = "X-Tenant-Id"
	headerRoles    = "X-Roles"
	rolePrefix     = "ROLE_"
)

// Authenticator establishes the request principal. A request without
// credentials is passed on anonymously; a request with bad credentials is
// rejected.
type Authenticator interface {
	Middleware(next http.Handler) http.Handler
}

type TokenValidator interface {
	Validate(ctx context.Context, value string) (tenantID string, ok bool, err error)
}

// NewAuthenticator returns the strategy named by the configuration.
func NewAuthenticator(cfg *config.Auth, validator TokenValidator) (Authenticator, error) {
	switch cfg.Strategy {
	case config.StrategyBearer:
		return NewBearerAuth(validator), nil
	case config.StrategyHeader:
		return NewHeaderTrust(cfg.Roles), nil
	default:
		return nil, fmt.Errorf("unknown auth strategy: %q", cfg.Strategy)
	}
}

// bearerPattern matches an RFC 6750 bearer credential. Trailing "="
// padding is captured as part of the token value.
var bearerPattern = regexp.MustCompile(`(?i)^Bearer ([a-zA-Z0-9\-._~+/]+=*)$`)

// BearerAuth authenticates agents presenting an envoy token.
type BearerAuth struct {
	validator TokenValidator
}

func NewBearerAuth(validator TokenValidator) *BearerAuth {
	return &BearerAuth{validator: validator}
}

func (b *BearerAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		m := bearerPattern.FindStringSubmatch(authHeader)
		if m == nil {
			log.Debugf("Malformed bearer token from %s", r.RemoteAddr)
			sendUnauthorized(w, "Bearer token is malformed")
			return
		}

		tenantID, ok, err := b.validator.Validate(r.Context(), m[1])
		if err != nil {
			log.Errorf("Error validating envoy token: %v", err)
			sendErrorResponse(w, http.StatusInternalServerError, "error validating token")
			return
		}

		if !ok {
			log.Debugf("Failed to authenticate request from %s", r.RemoteAddr)
			sendUnauthorized(w, "Invalid Envoy token")
			return
		}

		log.Debugf("Authenticated tenant: %s", tenantID)

		p := &model.Principal{
			TenantID:    tenantID,
			Authorities: []string{model.AuthorityCertRequestor},
		}
		next.ServeHTTP(w, r.WithContext(model.WithPrincipal(r.Context(), p)))
	})
}

// HeaderTrust accepts the tenant and roles asserted by an upstream gateway
// in X-Tenant-Id and X-Roles.
type HeaderTrust struct {
	roles []string
}

func NewHeaderTrust(roles []string) *HeaderTrust {
	return &HeaderTrust{roles: roles}
}

func (h *HeaderTrust) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := strings.TrimSpace(r.Header.Get(headerTenantID))
		if tenantID == "" {
			next.ServeHTTP(w, r)
			return
		}

		var authorities []string
		for _, role := range strings.Split(r.Header.Get(headerRoles), ",") {
			role = strings.TrimPrefix(strings.TrimSpace(role), rolePrefix)
			if slices.Contains(h.roles, role) {
				authorities = append(authorities, rolePrefix+role)
			}
		}

		if len(authorities) == 0 {
			log.Debugf("Tenant %s presented no accepted role", tenantID)
			next.ServeHTTP(w, r)
			return
		}

		p := &model.Principal{
			TenantID:    tenantID,
			Authorities: authorities,
		}
		next.ServeHTTP(w, r.WithContext(model.WithPrincipal(r.Context(), p)))
	})
}

func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if model.PrincipalFrom(r.Context()) == nil {
			sendUnauthorized(w, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sendUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="envoy-auth"`)
	sendErrorResponse(w, http.StatusUnauthorized, message)
}

func (a *API) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverAPIKey := a.Config.AdminAPIKey

		if serverAPIKey == "" {
			log.Error("Admin API key is not configured, rejecting request")
			sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		authHeader := r.Header.Get("Authorization")

		if authHeader == "" || !strings.HasPrefix(authHeader, "Basic ") {
			sendErrorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		encodedKey := strings.TrimPrefix(authHeader, "Basic ")
		decodedKeyBytes, err := base64.StdEncoding.DecodeString(encodedKey)
		if err != nil {
			log.Errorf("Error decoding base64: %v", err)
			sendErrorResponse(w, http.StatusBadRequest, "Invalid base64 encoding")
			return
		}

		if subtle.ConstantTimeCompare(decodedKeyBytes, []byte(serverAPIKey)) != 1 {
			log.Errorf("Invalid API key from %s", r.RemoteAddr)
			sendErrorResponse(w, http.StatusUnauthorized, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
