// Package email delivers one-time codes by email.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"smartbanker/backend/internal/mfa"
)

const (
	defaultTimeout = 15 * time.Second
	defaultBaseURL = "https://api.emailjs.com"
	sendPath       = "/api/v1.0/email/send"
)

// EmailJSClient sends code emails through the EmailJS REST API.
// See https://www.emailjs.com/docs/rest-api/send/.
type EmailJSClient struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	PrivateKey string
	BaseURL    string
	HTTPClient *http.Client
}

// NewEmailJSClient returns a client for the given service, template and keys. baseURL may be empty.
func NewEmailJSClient(serviceID, templateID, publicKey, privateKey, baseURL string) *EmailJSClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &EmailJSClient{
		ServiceID:  serviceID,
		TemplateID: templateID,
		PublicKey:  publicKey,
		PrivateKey: privateKey,
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

type sendRequest struct {
	ServiceID      string         `json:"service_id"`
	TemplateID     string         `json:"template_id"`
	UserID         string         `json:"user_id"`
	AccessToken    string         `json:"accessToken,omitempty"`
	TemplateParams templateParams `json:"template_params"`
}

type templateParams struct {
	ToEmail  string `json:"to_email"`
	FromName string `json:"from_name"`
	Message  string `json:"message"`
}

// Send implements mfa.Sender. The template receives to_email, from_name (the subject) and message.
// Does not log the message body.
func (c *EmailJSClient) Send(ctx context.Context, msg mfa.Message) error {
	if c.ServiceID == "" || c.TemplateID == "" || c.PublicKey == "" {
		return fmt.Errorf("emailjs: service, template and public key must be configured")
	}
	raw, err := json.Marshal(sendRequest{
		ServiceID:   c.ServiceID,
		TemplateID:  c.TemplateID,
		UserID:      c.PublicKey,
		AccessToken: c.PrivateKey,
		TemplateParams: templateParams{
			ToEmail:  msg.Destination,
			FromName: msg.Subject,
			Message:  msg.Body,
		},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+sendPath, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("emailjs: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// LogSender records that a message would have been sent. Used when no email provider is configured;
// pair it with dev OTP mode to read the code.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements mfa.Sender. The body is never logged since it carries the code.
func (s LogSender) Send(ctx context.Context, msg mfa.Message) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email delivery disabled; message not sent", "subject", msg.Subject, "destination", msg.Destination)
	return nil
}
