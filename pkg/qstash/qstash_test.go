package qstash

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, key string, body []byte, expires time.Time) string {
	t.Helper()

	claims := signatureClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "Upstash",
			Subject:   "https://remibot.example.com/internal/inbound",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-time.Second)),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Body: BodyHash(body),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}

func newVerifier(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		URL:               "https://qstash.upstash.io",
		Token:             "tok",
		CurrentSigningKey: "current",
		NextSigningKey:    "next",
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func TestVerifyAcceptsCurrentAndNextKeys(t *testing.T) {
	t.Parallel()

	client := newVerifier(t)
	body := []byte(`{"message_id":"wamid.1"}`)

	for _, key := range []string{"current", "next"} {
		if err := client.Verify(sign(t, key, body, time.Now().Add(time.Minute)), body); err != nil {
			t.Fatalf("Verify(%s) error = %v", key, err)
		}
	}
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	client := newVerifier(t)
	body := []byte(`{"message_id":"wamid.1"}`)

	tests := []struct {
		name      string
		signature string
		body      []byte
	}{
		{name: "missing", signature: "", body: body},
		{name: "unknown key", signature: sign(t, "other", body, time.Now().Add(time.Minute)), body: body},
		{name: "tampered body", signature: sign(t, "current", body, time.Now().Add(time.Minute)), body: []byte(`{"message_id":"wamid.2"}`)},
		{name: "expired", signature: sign(t, "current", body, time.Now().Add(-time.Minute)), body: body},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if err := client.Verify(tc.signature, tc.body); !errors.Is(err, ErrInvalidSignature) {
				t.Fatalf("Verify() error = %v, want ErrInvalidSignature", err)
			}
		})
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/publish/https://remibot.example.com/internal/inbound" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Upstash-Deduplication-Id") != "wamid.1" {
			t.Errorf("dedup id = %q", r.Header.Get("Upstash-Deduplication-Id"))
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"a":1}` {
			t.Errorf("body = %s", body)
		}
		_, _ = w.Write([]byte(`{"messageId":"msg_123"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	id, err := client.Publish(context.Background(), "https://remibot.example.com/internal/inbound", []byte(`{"a":1}`), "wamid.1")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if id != "msg_123" {
		t.Fatalf("Publish() id = %q, want msg_123", id)
	}
}

func TestPublishReportsFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid token"}`))
	}))
	defer srv.Close()

	client, err := NewClient(Config{URL: srv.URL, Token: "tok"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if _, err := client.Publish(context.Background(), "https://x", nil, ""); err == nil {
		t.Fatal("Publish() error = nil, want failure")
	}
}
