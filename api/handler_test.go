package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	contractx "github.com/tanpawarit/remibot/agent/contract"
	"github.com/tanpawarit/remibot/agent/receipt"
	statex "github.com/tanpawarit/remibot/agent/state"
)

type fakeResponder struct {
	mu    sync.Mutex
	reply contractx.Reply
	msgs  []contractx.InboundMessage
}

func (f *fakeResponder) HandleMessage(_ context.Context, msg contractx.InboundMessage) contractx.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	meta := map[string]any{}
	for k, v := range f.reply.Metadata {
		meta[k] = v
	}
	return contractx.Reply{Text: f.reply.Text, Metadata: meta}
}

func (f *fakeResponder) received() []contractx.InboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]contractx.InboundMessage(nil), f.msgs...)
}

type sent struct {
	kind, to, text, link string
}

type fakeSender struct {
	mu       sync.Mutex
	imageErr error
	sent     []sent
}

func (f *fakeSender) SendText(_ context.Context, to string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{kind: "text", to: to, text: text})
	return nil
}

func (f *fakeSender) SendImage(_ context.Context, to string, link string, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return f.imageErr
	}
	f.sent = append(f.sent, sent{kind: "image", to: to, text: caption, link: link})
	return nil
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	dests []string
	dedup []string
}

func (f *fakePublisher) Publish(_ context.Context, destination string, _ []byte, deduplicationID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.dests = append(f.dests, destination)
	f.dedup = append(f.dedup, deduplicationID)
	return "msg_1", nil
}

type fakeVerifier struct {
	valid string
}

func (f fakeVerifier) Verify(signature string, _ []byte) error {
	if signature != f.valid {
		return errors.New("bad signature")
	}
	return nil
}

type fakeCache struct {
	invalidated []string
	resets      int
}

func (f *fakeCache) Invalidate(key string) { f.invalidated = append(f.invalidated, key) }
func (f *fakeCache) Reset()                { f.resets++ }

type fakeReceipts struct{}

func (fakeReceipts) Get(_ context.Context, id string) (*receipt.Receipt, error) {
	if id == "plot-1-20250314120000" {
		return &receipt.Receipt{ID: id, Status: receipt.StatusDispatched, Active: true}, nil
	}
	return nil, contractx.ErrNotFound
}

func (fakeReceipts) List(context.Context, receipt.Filter) ([]receipt.Receipt, error) {
	return nil, nil
}

func webhookBody(ids ...string) []byte {
	var msgs []string
	for _, id := range ids {
		msgs = append(msgs, `{"id":"`+id+`","from":"59899123456","type":"text","text":{"body":"hola"}}`)
	}
	return []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"field":"messages","value":{"messages":[` + strings.Join(msgs, ",") + `]}}]}]}`)
}

func conversationReply(text string) contractx.Reply {
	return contractx.Reply{Text: text, Metadata: map[string]any{"status": contractx.StatusConversation}}
}

func newTestHandler(t *testing.T, deps Dependencies, cfg Config) (*Handler, http.Handler) {
	t.Helper()
	if deps.Deduper == nil {
		deps.Deduper = statex.NewMemoryDeduper(time.Hour)
	}
	h, err := NewHandler(deps, cfg)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, NewRouter(h)
}

func do(router http.Handler, method, target string, body []byte, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestNewHandlerValidatesMode(t *testing.T) {
	t.Parallel()

	deps := Dependencies{Orchestrator: &fakeResponder{}, Deduper: statex.NewMemoryDeduper(time.Hour)}
	if _, err := NewHandler(deps, Config{Mode: "batch"}); err == nil {
		t.Fatal("NewHandler() error = nil, want unknown mode error")
	}
	if _, err := NewHandler(deps, Config{Mode: ModeQStash}); err == nil {
		t.Fatal("NewHandler() error = nil, want missing qstash collaborators")
	}
}

func TestVerifyWebhook(t *testing.T) {
	t.Parallel()

	_, router := newTestHandler(t, Dependencies{Orchestrator: &fakeResponder{}}, Config{VerifyToken: "secret"})

	rec := do(router, http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil, nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "42" {
		t.Fatalf("verify = %d %q", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=nope&hub.challenge=42", nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("verify with wrong token = %d, want 403", rec.Code)
	}
}

func TestReceiveWebhookInlineDeduplicates(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: conversationReply("¿Qué chacra?")}
	sender := &fakeSender{}
	h, router := newTestHandler(t, Dependencies{Orchestrator: orch, Sender: sender}, Config{})

	for i := 0; i < 2; i++ {
		rec := do(router, http.MethodPost, "/webhooks/whatsapp", webhookBody("wamid.1"), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("webhook status = %d", rec.Code)
		}
	}
	h.Wait()

	if got := orch.received(); len(got) != 1 || got[0].MessageID != "wamid.1" {
		t.Fatalf("orchestrator received = %+v, want one message", got)
	}
	out := sender.all()
	if len(out) != 1 || out[0].kind != "text" || out[0].text != "¿Qué chacra?" || out[0].to != "59899123456" {
		t.Fatalf("sent = %+v", out)
	}
}

func TestReceiveWebhookAlwaysAcknowledges(t *testing.T) {
	t.Parallel()

	_, router := newTestHandler(t, Dependencies{Orchestrator: &fakeResponder{}}, Config{})

	rec := do(router, http.MethodPost, "/webhooks/whatsapp", []byte("not json"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestReceiveWebhookSendsReceiptImage(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: contractx.Reply{
		Text: "✅ Remito generado exitosamente",
		Metadata: map[string]any{
			"status":    contractx.StatusCreated,
			"id_remito": "plot-1-20250314120000",
			"qr_url":    "https://remitos.example.com/receipts/plot-1-20250314120000",
		},
	}}
	sender := &fakeSender{}
	h, router := newTestHandler(t, Dependencies{Orchestrator: orch, Sender: sender}, Config{})

	do(router, http.MethodPost, "/webhooks/whatsapp", webhookBody("wamid.9"), nil)
	h.Wait()

	out := sender.all()
	if len(out) != 1 || out[0].kind != "image" || out[0].link != "https://remitos.example.com/receipts/plot-1-20250314120000" {
		t.Fatalf("sent = %+v, want one image", out)
	}
}

func TestReceiveWebhookImageFailureFallsBackToText(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: contractx.Reply{
		Text:     "✅ Remito generado exitosamente",
		Metadata: map[string]any{"status": contractx.StatusCreated, "qr_url": "https://x/receipts/1"},
	}}
	sender := &fakeSender{imageErr: errors.New("media rejected")}
	h, router := newTestHandler(t, Dependencies{Orchestrator: orch, Sender: sender}, Config{})

	do(router, http.MethodPost, "/webhooks/whatsapp", webhookBody("wamid.10"), nil)
	h.Wait()

	out := sender.all()
	if len(out) != 1 || out[0].kind != "text" {
		t.Fatalf("sent = %+v, want text fallback", out)
	}
}

func TestReceiveWebhookPublishesInQStashMode(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: conversationReply("x")}
	pub := &fakePublisher{}
	h, router := newTestHandler(t,
		Dependencies{Orchestrator: orch, Publisher: pub, Verifier: fakeVerifier{valid: "sig"}},
		Config{Mode: ModeQStash, PublicBaseURL: "https://remibot.example.com/"},
	)

	do(router, http.MethodPost, "/webhooks/whatsapp", webhookBody("wamid.2"), nil)
	h.Wait()

	if len(orch.received()) != 0 {
		t.Fatal("message processed inline in qstash mode")
	}
	if len(pub.dests) != 1 || pub.dests[0] != "https://remibot.example.com/internal/inbound" || pub.dedup[0] != "wamid.2" {
		t.Fatalf("published = %v %v", pub.dests, pub.dedup)
	}
}

func TestReceiveWebhookPublishFailureProcessesInline(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: conversationReply("x")}
	h, router := newTestHandler(t,
		Dependencies{Orchestrator: orch, Publisher: &fakePublisher{err: errors.New("quota")}, Verifier: fakeVerifier{valid: "sig"}},
		Config{Mode: ModeQStash, PublicBaseURL: "https://remibot.example.com"},
	)

	do(router, http.MethodPost, "/webhooks/whatsapp", webhookBody("wamid.3"), nil)
	h.Wait()

	if len(orch.received()) != 1 {
		t.Fatalf("received = %d, want inline fallback", len(orch.received()))
	}
}

func TestReceiveQueued(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: conversationReply("hola")}
	sender := &fakeSender{}
	_, router := newTestHandler(t,
		Dependencies{Orchestrator: orch, Sender: sender, Publisher: &fakePublisher{}, Verifier: fakeVerifier{valid: "sig"}},
		Config{Mode: ModeQStash, PublicBaseURL: "https://remibot.example.com"},
	)
	body := []byte(`{"message_id":"wamid.4","from":"59899123456","body":"hola"}`)

	rec := do(router, http.MethodPost, "/internal/inbound", body, map[string]string{"Upstash-Signature": "forged"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged status = %d, want 401", rec.Code)
	}
	if len(orch.received()) != 0 {
		t.Fatal("forged callback processed")
	}

	rec = do(router, http.MethodPost, "/internal/inbound", body, map[string]string{"Upstash-Signature": "sig"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(orch.received()) != 1 || len(sender.all()) != 1 {
		t.Fatalf("received = %d sent = %d", len(orch.received()), len(sender.all()))
	}
}

func TestHandleMessageEndpoint(t *testing.T) {
	t.Parallel()

	orch := &fakeResponder{reply: conversationReply("¿Empresa?")}
	_, router := newTestHandler(t, Dependencies{Orchestrator: orch}, Config{})

	rec := do(router, http.MethodPost, "/v1/messages", []byte(`{"message_id":"m1","from":"598","body":"hola"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got contractx.Reply
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if got.Text != "¿Empresa?" || got.Status() != contractx.StatusConversation {
		t.Fatalf("reply = %+v", got)
	}

	rec = do(router, http.MethodPost, "/v1/messages", []byte(`{"from":"598","body":"  "}`), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank body status = %d, want 400", rec.Code)
	}
}

func TestClearCache(t *testing.T) {
	t.Parallel()

	phones, tenants := &fakeCache{}, &fakeCache{}
	_, router := newTestHandler(t, Dependencies{Orchestrator: &fakeResponder{}, Phones: phones, Tenants: tenants}, Config{})

	rec := do(router, http.MethodPost, "/v1/cache/clear", []byte(`{"contact":"598","organization_id":"org-1"}`), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(phones.invalidated) != 1 || phones.invalidated[0] != "598" || len(tenants.invalidated) != 1 || tenants.invalidated[0] != "org-1" {
		t.Fatalf("invalidated = %v %v", phones.invalidated, tenants.invalidated)
	}

	do(router, http.MethodPost, "/v1/cache/clear", nil, nil)
	if phones.resets != 1 || tenants.resets != 1 {
		t.Fatalf("resets = %d %d, want 1 1", phones.resets, tenants.resets)
	}
}

func TestGetReceipt(t *testing.T) {
	t.Parallel()

	_, router := newTestHandler(t, Dependencies{Orchestrator: &fakeResponder{}, Receipts: fakeReceipts{}}, Config{})

	rec := do(router, http.MethodGet, "/v1/receipts/plot-1-20250314120000", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id_remito":"plot-1-20250314120000"`) {
		t.Fatalf("get = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(router, http.MethodGet, "/v1/receipts/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing status = %d, want 404", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	_, router := newTestHandler(t, Dependencies{Orchestrator: &fakeResponder{}}, Config{})
	if rec := do(router, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
