package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/pkg/whatsapp"
)

// VerifyWebhook answers the Cloud API subscription handshake.
func (h *Handler) VerifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") != "subscribe" || h.cfg.VerifyToken == "" || q.Get("hub.verify_token") != h.cfg.VerifyToken {
		http.Error(w, "verification failed", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, q.Get("hub.challenge"))
}

// ReceiveWebhook always answers 200 so the provider never redelivers because
// of a processing problem on this side.
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	var env whatsapp.Envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&env); err != nil {
		log.Warn().Err(err).Msg("discarding undecodable webhook")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	accepted := 0
	for _, m := range env.TextMessages() {
		claimed, err := h.deps.Deduper.Claim(r.Context(), m.ID)
		if err != nil {
			// A broken dedupe store must not drop messages.
			log.Warn().Err(err).Str("message_id", m.ID).Msg("dedupe claim failed, processing anyway")
			claimed = true
		}
		if !claimed {
			log.Debug().Str("message_id", m.ID).Msg("duplicate delivery skipped")
			continue
		}

		msg := contractx.InboundMessage{MessageID: m.ID, From: m.From, Body: m.Body}
		h.dispatch(r.Context(), msg)
		accepted++
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "accepted": accepted})
}

func (h *Handler) dispatch(ctx context.Context, msg contractx.InboundMessage) {
	if h.cfg.Mode == ModeQStash {
		body, err := json.Marshal(msg)
		if err == nil {
			_, err = h.deps.Publisher.Publish(ctx, h.cfg.PublicBaseURL+inboundPath, body, msg.MessageID)
		}
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("message_id", msg.MessageID).Msg("qstash publish failed, processing inline")
	}

	detached := context.WithoutCancel(ctx)
	h.background.Go(func() {
		h.deliver(detached, msg)
	})
}

// ReceiveQueued handles a QStash callback carrying one InboundMessage.
func (h *Handler) ReceiveQueued(w http.ResponseWriter, r *http.Request) {
	if h.deps.Verifier == nil {
		writeError(w, http.StatusServiceUnavailable, "queue callbacks are not configured")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := h.deps.Verifier.Verify(r.Header.Get("Upstash-Signature"), body); err != nil {
		log.Warn().Err(err).Msg("rejected queue callback")
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	var msg contractx.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil || strings.TrimSpace(msg.From) == "" {
		// Acknowledge so QStash stops retrying a message that can never parse.
		log.Warn().Err(err).Msg("discarding malformed queue message")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	reply := h.deliver(r.Context(), msg)
	writeJSON(w, http.StatusOK, map[string]any{"status": string(reply.Status())})
}

func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request, id string) {
	if h.deps.Receipts == nil {
		writeError(w, http.StatusServiceUnavailable, "receipts are not configured")
		return
	}
	rec, err := h.deps.Receipts.Get(r.Context(), id)
	if errors.Is(err, contractx.ErrNotFound) {
		writeError(w, http.StatusNotFound, "receipt not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("receipt_id", id).Msg("get receipt failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
