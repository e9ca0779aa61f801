package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		if err := h.ping(r.Context()); err != nil {
			respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePreview evaluates a route at ?at= (unix seconds), or now.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	routeID, err := id.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid route id: %w", err))
		return
	}

	at := h.clock()
	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || at < 0 {
			respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid at %q", raw))
			return
		}
	}

	preview, err := h.mirror.Preview(r.Context(), routeID, at)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, preview)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	amount, err := strconv.ParseUint(q.Get("amount"), 10, 64)
	if err != nil || amount == 0 || amount > types.MaxAmount {
		respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid amount %q", q.Get("amount")))
		return
	}

	var tier uint64
	if raw := q.Get("tier"); raw != "" {
		tier, err = strconv.ParseUint(raw, 10, 8)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid tier %q", raw))
			return
		}
	}

	var nominated bool
	if raw := q.Get("nominated"); raw != "" {
		nominated, err = strconv.ParseBool(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, fmt.Errorf("invalid nominated %q", raw))
			return
		}
	}

	respondWithJSON(w, http.StatusOK, h.mirror.PreviewFee(amount, uint8(tier), nominated))
}

func (h *Handler) handleTotals(w http.ResponseWriter, r *http.Request) {
	network := r.URL.Query().Get("network")
	if network == "" {
		network = h.network
	}
	totals, err := h.totals.Totals(r.Context(), network)
	if err != nil {
		h.respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, totals)
}

func (h *Handler) respondWithDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, streams.ErrRouteNotFound),
		errors.Is(err, streams.ErrInvoiceNotFound),
		errors.Is(err, streams.ErrRecordNotFound),
		errors.Is(err, streams.ErrNotFound):
		respondWithError(w, http.StatusNotFound, err)
	case errors.Is(err, streams.ErrUnknownRouteKind),
		errors.Is(err, streams.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err)
	default:
		h.logger.Error("request failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func respondWithError(w http.ResponseWriter, code int, err error) {
	respondWithJSON(w, code, errorResponse{Error: err.Error()})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
