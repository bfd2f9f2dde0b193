package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/jsnider89/ai-news-digest/app/cfg"
)

// Message is one outgoing digest email.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Transport delivers a message. Two backends exist behind this interface:
// an HTTP email API and SMTP.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// NewTransport picks the backend from configuration: SMTP when a host is
// set, otherwise the HTTP API. Returns nil when neither is configured.
func NewTransport(c *cfg.Cfg) Transport {
	if c.SMTPHost != "" {
		return &SMTPTransport{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			UseTLS:   c.SMTPTLS,
			Timeout:  time.Duration(c.EmailTimeout) * time.Second,
		}
	}
	if c.EmailAPIKey != "" {
		return &HTTPTransport{
			Endpoint: c.EmailEndpoint,
			APIKey:   c.EmailAPIKey,
			Client:   &http.Client{Timeout: time.Duration(c.EmailTimeout) * time.Second},
		}
	}
	return nil
}

// HTTPTransport posts the message as JSON with bearer auth, the shape used
// by Resend-style email APIs.
type HTTPTransport struct {
	Endpoint string
	APIKey   string
	Client   *http.Client
}

func (t *HTTPTransport) Name() string {
	return "http-api"
}

func (t *HTTPTransport) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(map[string]interface{}{
		"from":    msg.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"html":    msg.HTML,
		"text":    msg.Text,
	})
	if err != nil {
		return fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("email API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// SMTPTransport sends via SMTP with optional TLS and AUTH.
type SMTPTransport struct {
	Host     string
	Port     int
	Username string
	Password string
	UseTLS   bool
	Timeout  time.Duration
}

func (t *SMTPTransport) Name() string {
	return "smtp"
}

func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	addr := fmt.Sprintf("%s:%d", t.Host, t.Port)

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("SMTP dial failed: %w", err)
	}

	client, err := smtp.NewClient(conn, t.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("SMTP handshake failed: %w", err)
	}
	defer client.Close()

	if t.UseTLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: t.Host}); err != nil {
				return fmt.Errorf("STARTTLS failed: %w", err)
			}
		}
	}

	if t.Username != "" {
		auth := smtp.PlainAuth("", t.Username, t.Password, t.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth failed: %w", err)
		}
	}

	if err := client.Mail(extractAddress(msg.From)); err != nil {
		return fmt.Errorf("SMTP MAIL FROM failed: %w", err)
	}
	for _, rcpt := range msg.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("SMTP RCPT TO %s failed: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA failed: %w", err)
	}
	if _, err := w.Write(buildMIME(msg)); err != nil {
		w.Close()
		return fmt.Errorf("SMTP write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("SMTP message not accepted: %w", err)
	}

	return client.Quit()
}

// buildMIME assembles a multipart/alternative body with text and HTML parts.
func buildMIME(msg Message) []byte {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(msg.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", writer.Boundary())

	textPart, _ := writer.CreatePart(map[string][]string{
		"Content-Type": {"text/plain; charset=utf-8"},
	})
	textPart.Write([]byte(msg.Text))

	htmlPart, _ := writer.CreatePart(map[string][]string{
		"Content-Type": {"text/html; charset=utf-8"},
	})
	htmlPart.Write([]byte(msg.HTML))

	writer.Close()
	return buf.Bytes()
}

func extractAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return from
}
