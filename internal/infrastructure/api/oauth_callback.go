package api

import (
	"net/http"
	"net/url"

	"helpdesk-integration-layer/internal/application"
	"helpdesk-integration-layer/internal/domain"
)

// oauthCallback finishes the flow and always answers with a redirect to the dashboard
func (h *Handler) oauthCallback(w http.ResponseWriter, r *http.Request) {
	platform, err := platformParam(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	q := r.URL.Query()

	if verifier, ok := h.callbacks[platform]; ok && !verifier.VerifyCallback(r.URL) {
		h.logger.Warn().
			Str("platform", platform.String()).
			Str("state", domain.ShortNonce(q.Get("state"))).
			Msg("OAuth callback signature rejected")
		h.redirectResult(w, r, "error", string(domain.OAuthInvalidState))
		return
	}

	if vendorErr := q.Get("error"); vendorErr != "" {
		h.logger.Info().
			Str("platform", platform.String()).
			Str("vendorError", vendorErr).
			Msg("Vendor returned an OAuth error")
	}

	cred, err := h.oauth.CompleteOAuth(r.Context(), application.CallbackParams{
		Platform:   platform,
		Code:       q.Get("code"),
		State:      q.Get("state"),
		ShopDomain: q.Get("shop"),
	})
	if err != nil {
		reason, ok := domain.OAuthFailure(err)
		if !ok {
			reason = domain.OAuthTokenExchangeFailed
		}
		h.redirectResult(w, r, "error", string(reason))
		return
	}
	h.redirectResult(w, r, "success", cred.Platform.String()+"_connected")
}

func (h *Handler) redirectResult(w http.ResponseWriter, r *http.Request, key, value string) {
	target := h.frontendURL + "/integration?" + url.Values{key: {value}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
