package cmd

import (
	"fmt"
	"time"

	"github.com/tanpawarit/remibot/agent/llm"
	statex "github.com/tanpawarit/remibot/agent/state"
	configx "github.com/tanpawarit/remibot/pkg/config"
	postgresx "github.com/tanpawarit/remibot/pkg/postgres"
	qstashx "github.com/tanpawarit/remibot/pkg/qstash"
	"github.com/tanpawarit/remibot/pkg/whatsapp"
)

type AppConfig struct {
	Addr            string        `split_words:"true" default:":8080"`
	ProcessingMode  string        `split_words:"true" default:"inline"`
	PublicBaseURL   string        `split_words:"true"`
	HistoryCapacity int           `split_words:"true" default:"10"`
	HistoryLimit    int           `split_words:"true" default:"20"`
	TenantParallel  int           `split_words:"true" default:"4"`
	LLMPrompt       string        `envconfig:"LLM_PROMPT"`
	ArtifactBaseURL string        `split_words:"true"`
	VerifyToken     string        `split_words:"true"`
	CountryCode     string        `split_words:"true" default:"598"`
	DedupeTTL       time.Duration `split_words:"true" default:"24h"`
	ShutdownTimeout time.Duration `split_words:"true" default:"10s"`
	// CacheResetSchedule clears phone and tenant caches, e.g. "@every 15m".
	CacheResetSchedule string `split_words:"true"`
}

type settings struct {
	App      AppConfig
	LLM      llm.Config
	Postgres postgresx.Config
	WhatsApp whatsapp.Config
	QStash   qstashx.Config
	Redis    statex.UpstashRedisConfig
}

func loadSettings() (*settings, error) {
	app, err := configx.New[AppConfig]("APP")
	if err != nil {
		return nil, fmt.Errorf("load APP config: %w", err)
	}
	llmCfg, err := configx.New[llm.Config]("LLM")
	if err != nil {
		return nil, fmt.Errorf("load LLM config: %w", err)
	}
	pg, err := configx.New[postgresx.Config]("POSTGRES")
	if err != nil {
		return nil, fmt.Errorf("load POSTGRES config: %w", err)
	}
	wa, err := configx.New[whatsapp.Config]("WHATSAPP")
	if err != nil {
		return nil, fmt.Errorf("load WHATSAPP config: %w", err)
	}
	qs, err := configx.New[qstashx.Config]("QSTASH")
	if err != nil {
		return nil, fmt.Errorf("load QSTASH config: %w", err)
	}
	redis, err := configx.New[statex.UpstashRedisConfig]("UPSTASH_REDIS")
	if err != nil {
		return nil, fmt.Errorf("load UPSTASH_REDIS config: %w", err)
	}
	return &settings{App: *app, LLM: *llmCfg, Postgres: *pg, WhatsApp: *wa, QStash: *qs, Redis: *redis}, nil
}
