package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{Model: "openai/gpt-4o-mini"}
	if _, err := cfg.New(context.Background()); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("New() error = %v, want ErrMissingAPIKey", err)
	}
	if NewClient(*cfg) != nil {
		t.Fatal("NewClient() without key should be nil")
	}
}

func TestHeaderTransportSetsSiteHeaders(t *testing.T) {
	t.Parallel()

	var referer, title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
	}))
	t.Cleanup(server.Close)

	cfg := Config{SiteURL: "https://remibot.example", SiteName: "RemiBOT"}
	client := &http.Client{Transport: &headerTransport{headers: cfg.headers(), next: http.DefaultTransport}}
	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	resp.Body.Close()

	if referer != "https://remibot.example" || title != "RemiBOT" {
		t.Fatalf("headers = %q, %q", referer, title)
	}
}
