package api

import (
	"errors"
	"net/http"
	"strconv"

	"helpdesk-integration-layer/internal/application"
	"helpdesk-integration-layer/internal/domain"
)

func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.Join(domain.ErrInvalidInput, errors.New(name+" must be a positive integer"))
	}
	return n, nil
}

func (h *Handler) gmailMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.mailbox.ListMessages(r.Context(), domain.UserIDFromContext(r.Context()), application.MailboxQuery{
		Type:      r.URL.Query().Get("type"),
		Limit:     limit,
		PageToken: r.URL.Query().Get("pageToken"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) shopifyOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	orders, err := h.store.RecentOrders(r.Context(), domain.UserIDFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}
