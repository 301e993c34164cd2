package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Stripe caps event payloads well below this.
const maxWebhookBody = 1 << 16

func (r *Router) handleBillingWebhook(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	signature := req.Header.Get("Stripe-Signature")
	if err := r.billing.HandleWebhook(req.Context(), body, signature); err != nil {
		r.logger.Warn("stripe webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "webhook rejected")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (r *Router) handleBilling(w http.ResponseWriter, req *http.Request) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for billing route", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	switch strings.TrimPrefix(req.URL.Path, "/billing/") {
	case "plans":
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		plans, err := r.billing.Plans(req.Context())
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, plans)
	case "checkout":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		var payload struct {
			Plan string `json:"plan"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		url, err := r.billing.CreateCheckoutSession(req.Context(), info.UserID, payload.Plan)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	case "portal":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		url, err := r.billing.CreatePortalSession(req.Context(), info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": url})
	case "subscription":
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		sub, err := r.billing.Subscription(req.Context(), info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"subscription": sub})
	case "invoices":
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		invoices, err := r.billing.Invoices(req.Context(), info.UserID, limit)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invoices)
	default:
		r.notFound(w)
	}
}
