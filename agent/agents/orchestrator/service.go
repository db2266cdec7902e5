package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/remibot/agent/contract"
	nodex "github.com/tanpawarit/remibot/agent/nodes/orchestrator"
	promptx "github.com/tanpawarit/remibot/agent/prompt"
)

const (
	defaultHistoryLimit = 20
	defaultMaxTokens    = 600

	ApologyReply      = "Lo siento, ocurrió un error procesando tu mensaje. Por favor, intentá nuevamente en unos minutos."
	NoCredentialReply = "El asistente no está disponible en este momento porque falta configurar la clave del modelo de lenguaje. Avisá al administrador del sistema."
)

type Config struct {
	HistoryLimit int
	MaxTokens    int
}

// Dependencies are the collaborators of one Orchestrator. Events may be nil.
type Dependencies struct {
	Directory contractx.PhoneDirectory
	History   contractx.DialogueStore
	Tenants   nodex.TenantLoader
	Composer  *promptx.Composer
	Model     contractx.LanguageModel
	Resolver  nodex.CatalogResolver
	Receipts  nodex.ReceiptCreator
	Events    contractx.EventSink
}

type Orchestrator struct {
	deps Dependencies

	graphRunner compose.Runnable[nodex.GraphInput, contractx.Reply]

	historyLimit int
	maxTokens    int

	now func() time.Time
}

func New(deps Dependencies, cfg Config) (*Orchestrator, error) {
	if deps.Directory == nil {
		return nil, errors.New("phone directory is required")
	}
	if deps.History == nil {
		return nil, errors.New("dialogue store is required")
	}
	if deps.Tenants == nil {
		return nil, errors.New("tenant loader is required")
	}
	if deps.Model == nil {
		return nil, errors.New("language model is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("catalog resolver is required")
	}
	if deps.Receipts == nil {
		return nil, errors.New("receipt creator is required")
	}
	if deps.Composer == nil {
		deps.Composer = promptx.NewComposer()
	}
	if deps.Events == nil {
		deps.Events = noopEvents{}
	}

	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	o := &Orchestrator{
		deps:         deps,
		historyLimit: historyLimit,
		maxTokens:    maxTokens,
		now:          time.Now,
	}

	graphRunner, err := o.compileHandleMessageGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleMessage never fails. Upstream errors become an apology with status
// error and the conversation is left as it was so the contact can retry.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg contractx.InboundMessage) contractx.Reply {
	o.deps.Events.Record(ctx, contractx.EventIncoming, msg.Body, map[string]any{
		"contacto":   msg.From,
		"message_id": msg.MessageID,
	})

	reply, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{
		MessageID: msg.MessageID,
		Contact:   msg.From,
		Text:      msg.Body,
	})
	if err != nil {
		reply = o.failureReply(ctx, msg, err)
	}

	o.deps.Events.Record(ctx, contractx.EventOutgoing, reply.Text, map[string]any{
		"contacto":   msg.From,
		"message_id": msg.MessageID,
		"status":     string(reply.Status()),
	})
	return reply
}

func (o *Orchestrator) failureReply(ctx context.Context, msg contractx.InboundMessage, err error) contractx.Reply {
	log.Error().Err(err).Str("contact", msg.From).Str("message_id", msg.MessageID).Msg("handle message failed")
	o.deps.Events.Record(ctx, contractx.EventError, err.Error(), map[string]any{
		"contacto":   msg.From,
		"message_id": msg.MessageID,
	})

	text := ApologyReply
	if errors.Is(err, contractx.ErrNoCredential) {
		text = NoCredentialReply
	}
	return contractx.Reply{
		Text:     text,
		Metadata: map[string]any{"status": contractx.StatusError},
	}
}

type noopEvents struct{}

func (noopEvents) Record(context.Context, string, string, map[string]any) {}
