package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type issueRequest struct {
	CommonName string `json:"common_name"`
	Format     string `json:"format"`
}

func newFakeVault(t *testing.T, handler http.HandlerFunc) *Issuer {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	issuer, err := New(&Config{
		Address: srv.URL,
		Token:   "test-token",
	})
	require.NoError(t, err)

	return issuer
}

func TestIssuer_IssueCertificate(t *testing.T) {
	var got issueRequest
	var gotPath, gotToken string

	issuer := newFakeVault(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("X-Vault-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"request_id": "1",
			"data": map[string]any{
				"certificate": "Q0VSVA==",
				"issuing_ca":  "Q0E=",
				"private_key": "S0VZ",
			},
		})
	})

	raw, err := issuer.IssueCertificate(context.Background(), "telemetry-infra", "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, "/v1/pki/issue/telemetry-infra", gotPath)
	assert.Equal(t, "test-token", gotToken)
	assert.Equal(t, "tenant-1", got.CommonName)
	assert.Equal(t, "der", got.Format)

	assert.Equal(t, "Q0VSVA==", raw.Certificate)
	assert.Equal(t, "Q0E=", raw.IssuingCaCertificate)
	assert.Equal(t, "S0VZ", raw.PrivateKey)
}

func TestIssuer_IssueCertificate_MissingField(t *testing.T) {
	issuer := newFakeVault(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"certificate": "Q0VSVA==",
				"issuing_ca":  "Q0E=",
			},
		})
	})

	_, err := issuer.IssueCertificate(context.Background(), "role", "tenant-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestIssuer_IssueCertificate_Rejected(t *testing.T) {
	issuer := newFakeVault(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":["unknown role"]}`))
	})

	_, err := issuer.IssueCertificate(context.Background(), "missing", "tenant-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
}

func TestIssuer_Healthy(t *testing.T) {
	var sealed atomic.Bool
	issuer := newFakeVault(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sys/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"initialized": true,
			"sealed":      sealed.Load(),
		})
	})

	assert.NoError(t, issuer.Healthy(context.Background()))

	sealed.Store(true)
	assert.Error(t, issuer.Healthy(context.Background()))
}

func TestNew_SkipVerifyKeepsClientSettings(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"certificate": "Q0VSVA==",
				"issuing_ca":  "Q0E=",
				"private_key": "S0VZ",
			},
		})
	}))
	t.Cleanup(srv.Close)

	issuer, err := New(&Config{
		Address:    srv.URL,
		Token:      "test-token",
		Timeout:    7 * time.Second,
		SkipVerify: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 7*time.Second, issuer.client.ClientTimeout())

	_, err = issuer.IssueCertificate(context.Background(), "telemetry-infra", "tenant-1")
	require.NoError(t, err)
}
