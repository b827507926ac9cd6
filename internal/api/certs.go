package api

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

func (a *API) getCert(w http.ResponseWriter, r *http.Request) {
	p := model.PrincipalFrom(r.Context())

	bundle, err := a.Certs.GetClientCertificate(r.Context(), p.TenantID)
	if err != nil {
		log.Errorf("Error getting client certificate for tenant %s: %v", p.TenantID, err)
		sendErrorResponse(w, http.StatusBadGateway, "error issuing client certificate")
		return
	}

	log.Infof("Retrieved client certificates for tenant: %s", p.TenantID)
	sendSuccessResponse(w, http.StatusOK, bundle)
}
