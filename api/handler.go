package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/eventlog"
	"github.com/tanpawarit/remibot/agent/receipt"
	statex "github.com/tanpawarit/remibot/agent/state"
)

const (
	ModeInline = "inline"
	ModeQStash = "qstash"

	maxBodyBytes = 1 << 20
	inboundPath  = "/internal/inbound"
)

type Responder interface {
	HandleMessage(ctx context.Context, msg contractx.InboundMessage) contractx.Reply
}

type Sender interface {
	SendText(ctx context.Context, to string, text string) error
	SendImage(ctx context.Context, to string, link string, caption string) error
}

type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte, deduplicationID string) (string, error)
}

type Verifier interface {
	Verify(signature string, body []byte) error
}

type PhoneCache interface {
	Invalidate(contact string)
	Reset()
}

type TenantCache interface {
	Invalidate(organizationID string)
	Reset()
}

type ReceiptReader interface {
	Get(ctx context.Context, id string) (*receipt.Receipt, error)
	List(ctx context.Context, filter receipt.Filter) ([]receipt.Receipt, error)
}

type EventReader interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Event, error)
}

type Config struct {
	VerifyToken   string
	Mode          string
	PublicBaseURL string
}

// Dependencies wires the handler. Sender, Publisher, Verifier, the caches,
// Receipts and Events are optional; routes needing a missing one answer 503.
type Dependencies struct {
	Orchestrator Responder
	Deduper      statex.Deduper
	Sender       Sender
	Publisher    Publisher
	Verifier     Verifier
	Phones       PhoneCache
	Tenants      TenantCache
	Receipts     ReceiptReader
	Events       EventReader
}

type Handler struct {
	deps Dependencies
	cfg  Config

	background conc.WaitGroup
}

func NewHandler(deps Dependencies, cfg Config) (*Handler, error) {
	if deps.Orchestrator == nil {
		return nil, errors.New("orchestrator is required")
	}
	if deps.Deduper == nil {
		return nil, errors.New("deduper is required")
	}

	cfg.Mode = strings.ToLower(strings.TrimSpace(cfg.Mode))
	if cfg.Mode == "" {
		cfg.Mode = ModeInline
	}
	if cfg.Mode != ModeInline && cfg.Mode != ModeQStash {
		return nil, errors.New("processing mode must be inline or qstash")
	}
	if cfg.Mode == ModeQStash && (deps.Publisher == nil || deps.Verifier == nil || strings.TrimSpace(cfg.PublicBaseURL) == "") {
		return nil, errors.New("qstash mode needs a publisher, a verifier and a public base url")
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")

	return &Handler{deps: deps, cfg: cfg}, nil
}

// Wait blocks until inline deliveries started by the webhook finish.
func (h *Handler) Wait() {
	h.background.Wait()
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleMessage is the synchronous inbound contract: it answers with the
// reply instead of sending it.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var msg contractx.InboundMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(msg.From) == "" || strings.TrimSpace(msg.Body) == "" {
		writeError(w, http.StatusBadRequest, "from and body are required")
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Orchestrator.HandleMessage(r.Context(), msg))
}

type cacheClearRequest struct {
	Contact        string `json:"contact"`
	OrganizationID string `json:"organization_id"`
}

// ClearCache drops one contact and/or one organization, or everything when
// the body names neither.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	var req cacheClearRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	contact := strings.TrimSpace(req.Contact)
	orgID := strings.TrimSpace(req.OrganizationID)

	cleared := []string{}
	switch {
	case contact == "" && orgID == "":
		if h.deps.Phones != nil {
			h.deps.Phones.Reset()
			cleared = append(cleared, "phones")
		}
		if h.deps.Tenants != nil {
			h.deps.Tenants.Reset()
			cleared = append(cleared, "tenants")
		}
	default:
		if contact != "" && h.deps.Phones != nil {
			h.deps.Phones.Invalidate(contact)
			cleared = append(cleared, "phone:"+contact)
		}
		if orgID != "" && h.deps.Tenants != nil {
			h.deps.Tenants.Invalidate(orgID)
			cleared = append(cleared, "tenant:"+orgID)
		}
	}

	log.Info().Strs("cleared", cleared).Msg("cache cleared")
	writeJSON(w, http.StatusOK, map[string]any{"cleared": cleared})
}

func (h *Handler) deliver(ctx context.Context, msg contractx.InboundMessage) contractx.Reply {
	reply := h.deps.Orchestrator.HandleMessage(ctx, msg)
	if h.deps.Sender == nil {
		log.Debug().Str("contact", msg.From).Msg("no outbound sender configured, reply dropped")
		return reply
	}

	if reply.Status() == contractx.StatusCreated {
		if link, _ := reply.Metadata["qr_url"].(string); link != "" {
			err := h.deps.Sender.SendImage(ctx, msg.From, link, reply.Text)
			if err == nil {
				reply.Metadata["image_sent"] = true
				return reply
			}
			log.Warn().Err(err).Str("contact", msg.From).Msg("send receipt image failed, falling back to text")
			reply.Metadata["image_sent"] = false
		}
	}

	if err := h.deps.Sender.SendText(ctx, msg.From, reply.Text); err != nil {
		log.Error().Err(err).Str("contact", msg.From).Str("message_id", msg.MessageID).Msg("send reply failed")
	}
	return reply
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
