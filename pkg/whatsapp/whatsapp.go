package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGraphURL = "https://graph.facebook.com"

type Config struct {
	Token      string        `split_words:"true"`
	PhoneID    string        `split_words:"true"`
	APIVersion string        `split_words:"true" default:"v18.0"`
	BaseURL    string        `split_words:"true" default:"https://graph.facebook.com"`
	Timeout    time.Duration `split_words:"true" default:"30s"`
}

func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Token) != "" && strings.TrimSpace(c.PhoneID) != ""
}

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if !cfg.Enabled() {
		return nil, errors.New("whatsapp token and phone id are required")
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultGraphURL
	}
	version := strings.TrimSpace(cfg.APIVersion)
	if version == "" {
		version = "v18.0"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   fmt.Sprintf("%s/%s/%s/messages", base, version, strings.TrimSpace(cfg.PhoneID)),
		token:      strings.TrimSpace(cfg.Token),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type textBody struct {
	Body string `json:"body"`
}

type imageBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Image            *imageBody `json:"image,omitempty"`
}

func (c *Client) SendText(ctx context.Context, to string, text string) error {
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: text},
	})
}

// SendImage sends a hosted image by link. An empty caption is omitted.
func (c *Client) SendImage(ctx context.Context, to string, link string, caption string) error {
	return c.send(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
		Image:            &imageBody{Link: link, Caption: caption},
	})
}

func (c *Client) send(ctx context.Context, msg outboundMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("whatsapp recipient is empty")
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("whatsapp api error: %s body=%s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}
