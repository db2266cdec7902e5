package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tanpawarit/remibot/agent/receipt"
)

// ListReceipts serves GET /v1/receipts. Filters mirror the receipt columns:
// activo, destino, establecimiento, chacra, matricula_camion,
// matricula_zorra, cedula_conductor, year, month, day and limit.
func (h *Handler) ListReceipts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Receipts == nil {
		writeError(w, http.StatusServiceUnavailable, "receipts are not configured")
		return
	}

	filter, err := parseReceiptFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := h.deps.Receipts.List(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("list receipts failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rows == nil {
		rows = []receipt.Receipt{}
	}
	writeJSON(w, http.StatusOK, rows)
}

// ListEvents serves GET /v1/events?limit=N, newest first.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event log is not configured")
		return
	}

	limit, err := intParam(r.URL.Query(), "limit", 1, 500)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.deps.Events.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("list events failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func parseReceiptFilter(q url.Values) (receipt.Filter, error) {
	f := receipt.Filter{
		Destination:  strings.TrimSpace(q.Get("destino")),
		Site:         strings.TrimSpace(q.Get("establecimiento")),
		Plot:         strings.TrimSpace(q.Get("chacra")),
		TruckPlate:   strings.TrimSpace(q.Get("matricula_camion")),
		TrailerPlate: strings.TrimSpace(q.Get("matricula_zorra")),
		DriverID:     strings.TrimSpace(q.Get("cedula_conductor")),
	}

	if raw := strings.TrimSpace(q.Get("activo")); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.New("activo must be true or false")
		}
		f.Active = &active
	}

	ints := []struct {
		name     string
		min, max int
		dst      *int
	}{
		{"year", 2020, 2100, &f.Year},
		{"month", 1, 12, &f.Month},
		{"day", 1, 31, &f.Day},
		{"limit", 1, receipt.MaxListLimit, &f.Limit},
	}
	for _, p := range ints {
		v, err := intParam(q, p.name, p.min, p.max)
		if err != nil {
			return f, err
		}
		*p.dst = v
	}
	return f, nil
}

// intParam returns 0 when name is absent.
func intParam(q url.Values, name string, min, max int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return v, nil
}
