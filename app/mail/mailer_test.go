package mail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jsnider89/ai-news-digest/app/cfg"
)

func TestHTTPTransportSend(t *testing.T) {
	var captured map[string]interface{}
	var authHeader, contentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&captured)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	transport := &HTTPTransport{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Client:   srv.Client(),
	}

	err := transport.Send(context.Background(), Message{
		From:    "Digest <digest@example.com>",
		To:      []string{"ops@example.com"},
		Subject: "Daily Markets — Monday, Jul 7",
		HTML:    "<html>body</html>",
		Text:    "body",
	})

	assert.Equal(t, nil, err)
	assert.Equal(t, "Bearer test-key", authHeader)
	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "Digest <digest@example.com>", captured["from"])
	assert.Equal(t, "Daily Markets — Monday, Jul 7", captured["subject"])
	assert.Equal(t, "<html>body</html>", captured["html"])
	assert.Equal(t, "body", captured["text"])

	to := captured["to"].([]interface{})
	assert.Equal(t, 1, len(to))
	assert.Equal(t, "ops@example.com", to[0])
}

func TestHTTPTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"invalid recipient"}`))
	}))
	defer srv.Close()

	transport := &HTTPTransport{Endpoint: srv.URL, APIKey: "k", Client: srv.Client()}
	err := transport.Send(context.Background(), Message{To: []string{"x"}})

	if err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
	assert.MatchRegex(t, err.Error(), "422")
}

func TestHTTPTransportTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	transport := &HTTPTransport{
		Endpoint: srv.URL,
		APIKey:   "k",
		Client:   &http.Client{Timeout: 30 * time.Millisecond},
	}
	err := transport.Send(context.Background(), Message{To: []string{"x"}})
	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestNewTransportSelection(t *testing.T) {
	smtpCfg := &cfg.Cfg{SMTPHost: "mail.example.com", SMTPPort: 587, EmailTimeout: 30}
	if got := NewTransport(smtpCfg); got == nil || got.Name() != "smtp" {
		t.Errorf("Expected smtp transport when host set, got: %v", got)
	}

	httpCfg := &cfg.Cfg{EmailAPIKey: "key", EmailEndpoint: "https://api.example.com/emails", EmailTimeout: 30}
	if got := NewTransport(httpCfg); got == nil || got.Name() != "http-api" {
		t.Errorf("Expected http transport when API key set, got: %v", got)
	}

	if got := NewTransport(&cfg.Cfg{}); got != nil {
		t.Errorf("Expected nil transport when nothing configured, got: %v", got)
	}
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME(Message{
		From:    "Digest <d@example.com>",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Subject line",
		HTML:    "<p>html part</p>",
		Text:    "text part",
	}))

	assert.MatchRegex(t, raw, "From: Digest <d@example.com>")
	assert.MatchRegex(t, raw, "To: a@example.com, b@example.com")
	assert.MatchRegex(t, raw, "Subject: Subject line")
	assert.MatchRegex(t, raw, "multipart/alternative")
	assert.MatchRegex(t, raw, "text/plain")
	assert.MatchRegex(t, raw, "text/html")
	assert.MatchRegex(t, raw, "html part")
	assert.MatchRegex(t, raw, "text part")
}

func TestExtractAddress(t *testing.T) {
	assert.Equal(t, "d@example.com", extractAddress("Digest <d@example.com>"))
	assert.Equal(t, "plain@example.com", extractAddress("plain@example.com"))
}
