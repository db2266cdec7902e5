package state

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

var ErrInvalidMessageID = errors.New("message id is empty")

const (
	defaultDedupeKeyPrefix = "remibot:msg:"
	defaultDedupeTTL       = 24 * time.Hour
	maxResponseSizeBytes   = 2 << 20
)

// Deduper claims inbound message ids so that a redelivered webhook is
// processed at most once. Claim reports true for the first caller only.
type Deduper interface {
	Claim(ctx context.Context, messageID string) (bool, error)
}

// MemoryDeduper is the process-local Deduper.
type MemoryDeduper struct {
	seen *xsync.MapOf[string, time.Time]
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &MemoryDeduper{
		seen: xsync.NewMapOf[string, time.Time](),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (d *MemoryDeduper) Claim(_ context.Context, messageID string) (bool, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return false, ErrInvalidMessageID
	}
	now := d.now()
	claimed := false
	d.seen.Compute(messageID, func(expires time.Time, loaded bool) (time.Time, bool) {
		if loaded && now.Before(expires) {
			return expires, false
		}
		claimed = true
		return now.Add(d.ttl), false
	})
	return claimed, nil
}

// DedupeOption customizes UpstashDeduper.
type DedupeOption func(*UpstashDeduper)

func WithKeyPrefix(prefix string) DedupeOption {
	return func(d *UpstashDeduper) {
		trimmed := strings.TrimSpace(prefix)
		if trimmed != "" {
			d.keyPrefix = trimmed
		}
	}
}

func WithTTL(ttl time.Duration) DedupeOption {
	return func(d *UpstashDeduper) {
		d.ttl = ttl
	}
}

func WithHTTPClient(client *http.Client) DedupeOption {
	return func(d *UpstashDeduper) {
		if client != nil {
			d.httpClient = client
		}
	}
}

type UpstashRedisConfig struct {
	URL     string        `envconfig:"URL" split_words:"true"`
	Token   string        `envconfig:"TOKEN" split_words:"true"`
	Timeout time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
}

func (c UpstashRedisConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != "" && strings.TrimSpace(c.Token) != ""
}

// UpstashDeduper claims message ids with SET NX in Upstash Redis over REST,
// which lets several replicas share one claim set.
type UpstashDeduper struct {
	baseURL    string
	token      string
	httpClient *http.Client
	keyPrefix  string
	ttl        time.Duration
}

type redisRESTResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func NewUpstashDeduper(cfg UpstashRedisConfig, opts ...DedupeOption) (*UpstashDeduper, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	if baseURL == "" {
		return nil, errors.New("upstash redis url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid redis rest url: %w", err)
	}

	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("upstash redis token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	d := &UpstashDeduper{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		keyPrefix:  defaultDedupeKeyPrefix,
		ttl:        defaultDedupeTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	if d.ttl <= 0 {
		return nil, errors.New("ttl must be > 0")
	}
	return d, nil
}

func (d *UpstashDeduper) Claim(ctx context.Context, messageID string) (bool, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return false, ErrInvalidMessageID
	}

	resp, err := d.exec(ctx, []any{"SET", d.keyPrefix + messageID, "1", "NX", "EX", ttlSeconds(d.ttl)})
	if err != nil {
		return false, err
	}

	result := bytes.TrimSpace(resp.Result)
	if len(result) == 0 || bytes.Equal(result, []byte("null")) {
		return false, nil
	}
	var status string
	if err := json.Unmarshal(result, &status); err != nil {
		return false, fmt.Errorf("decode redis result: %w", err)
	}
	return strings.EqualFold(status, "OK"), nil
}

func (d *UpstashDeduper) exec(ctx context.Context, command []any) (*redisRESTResponse, error) {
	if len(command) == 0 {
		return nil, errors.New("empty redis command")
	}

	body, err := json.Marshal(command)
	if err != nil {
		return nil, fmt.Errorf("marshal redis command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build redis request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute redis request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return nil, fmt.Errorf("read redis response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("redis http status=%d body=%s", resp.StatusCode, string(raw))
	}

	var parsed redisRESTResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode redis response: %w", err)
	}
	if parsed.Error != "" {
		return nil, errors.New(parsed.Error)
	}
	return &parsed, nil
}

func ttlSeconds(ttl time.Duration) int64 {
	seconds := ttl / time.Second
	if seconds <= 0 {
		return 1
	}
	if ttl%time.Second != 0 {
		seconds++
	}
	return int64(seconds)
}
