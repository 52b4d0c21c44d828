package api

import (
	"net/http"

	"helpdesk-integration-layer/internal/application"
	"helpdesk-integration-layer/internal/domain"
)

func (h *Handler) listIntegrations(w http.ResponseWriter, r *http.Request) {
	views, err := h.credentials.ListIntegrations(r.Context(), domain.UserIDFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"integrations": views})
}

func (h *Handler) getIntegration(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cred, err := h.credentials.LoadCredential(r.Context(), domain.UserIDFromContext(r.Context()), platform)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, application.NewIntegrationView(platform, cred))
}

func (h *Handler) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.credentials.DeleteCredential(r.Context(), domain.UserIDFromContext(r.Context()), platform); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type beginOAuthRequest struct {
	ShopDomain string `json:"shopDomain"`
}

func (h *Handler) beginOAuth(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req beginOAuthRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	redirect, err := h.oauth.BeginOAuth(r.Context(), domain.UserIDFromContext(r.Context()), platform, req.ShopDomain)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, redirect)
}

func (h *Handler) connectShopify(w http.ResponseWriter, r *http.Request) {
	var in application.ShopifyPrivateAppInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cred, err := h.connect.ConnectShopifyPrivateApp(r.Context(), domain.UserIDFromContext(r.Context()), in)
	h.writeConnected(w, r, domain.PlatformShopify, cred, err)
}

func (h *Handler) connectWooCommerce(w http.ResponseWriter, r *http.Request) {
	var in application.WooCommerceInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cred, err := h.connect.ConnectWooCommerce(r.Context(), domain.UserIDFromContext(r.Context()), in)
	h.writeConnected(w, r, domain.PlatformWooCommerce, cred, err)
}

func (h *Handler) connectIMAP(w http.ResponseWriter, r *http.Request) {
	var in application.IMAPInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	cred, err := h.connect.ConnectIMAP(r.Context(), domain.UserIDFromContext(r.Context()), in)
	h.writeConnected(w, r, domain.PlatformIMAP, cred, err)
}

func (h *Handler) writeConnected(w http.ResponseWriter, r *http.Request, platform domain.Platform, cred *domain.IntegrationCredential, err error) {
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, application.NewIntegrationView(platform, cred))
}
