package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/fragpit/envoy-auth/internal/model"
)

type TokenRequest struct {
	Description string `json:"description"`
}

func (a *API) allocateToken(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("Error decoding request: %v", err)
		sendErrorResponse(w, http.StatusBadRequest, "error decoding request")
		return
	}

	tk, err := a.Tokens.Allocate(r.Context(), tenantID, req.Description)
	if err != nil {
		sendServiceError(w, err, "error allocating token")
		return
	}

	sendSuccessResponse(w, http.StatusCreated, tk)
}

func (a *API) getTokens(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	page, err := pageRequest(r)
	if err != nil {
		sendErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.Tokens.GetAll(r.Context(), tenantID, page)
	if err != nil {
		sendServiceError(w, err, "error getting tokens")
		return
	}

	sendSuccessResponse(w, http.StatusOK, p)
}

func (a *API) getToken(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tokenID := chi.URLParam(r, "id")

	tk, err := a.Tokens.GetOne(r.Context(), tenantID, tokenID)
	if err != nil {
		sendServiceError(w, err, "error getting token")
		return
	}

	sendSuccessResponse(w, http.StatusOK, tk)
}

func (a *API) updateToken(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tokenID := chi.URLParam(r, "id")

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("Error decoding request: %v", err)
		sendErrorResponse(w, http.StatusBadRequest, "error decoding request")
		return
	}

	tk, err := a.Tokens.Update(r.Context(), tenantID, tokenID, req.Description)
	if err != nil {
		sendServiceError(w, err, "error updating token")
		return
	}

	sendSuccessResponse(w, http.StatusOK, tk)
}

func (a *API) deleteToken(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	tokenID := chi.URLParam(r, "id")

	if err := a.Tokens.Delete(r.Context(), tenantID, tokenID); err != nil {
		sendServiceError(w, err, "error deleting token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) deleteAllTokens(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")

	if err := a.Tokens.DeleteAllForTenant(r.Context(), tenantID); err != nil {
		sendServiceError(w, err, "error deleting tokens")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func pageRequest(r *http.Request) (model.PageRequest, error) {
	var page model.PageRequest
	q := r.URL.Query()

	for name, dst := range map[string]*int{
		"page": &page.Number,
		"size": &page.Size,
	} {
		v := q.Get(name)
		if v == "" {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, fmt.Errorf("invalid %s parameter: %s", name, v)
		}
		*dst = n
	}

	return page.Normalize(), nil
}
