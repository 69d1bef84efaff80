package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/storegrid/identity-service/internal/observability"
)

// EmailSender delivers transactional mail. Send failures never surface to
// API callers; they are logged and counted instead.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

const resendEndpoint = "https://api.resend.com/emails"

type resendSender struct {
	apiKey string
	from   string
	client *http.Client
}

// NewResendSender sends through the Resend HTTP API.
func NewResendSender(apiKey, from string) EmailSender {
	return &resendSender{
		apiKey: apiKey,
		from:   from,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *resendSender) Send(ctx context.Context, to, subject, html string) error {
	payload, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send email: status %d", resp.StatusCode)
	}
	return nil
}

// LogSender writes mail to the log instead of delivering it. Used in dev
// when no Resend key is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, to, subject, html string) error {
	slog.InfoContext(ctx, "email (log sender)", "to", to, "subject", subject, "html", html)
	return nil
}

// SendOTPEmail composes and dispatches the verification code mail in the
// background. The caller's request finishes regardless of the outcome.
func SendOTPEmail(sender EmailSender, to, code string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		html := fmt.Sprintf(
			"<p>Your verification code is:</p><h2 style=\"letter-spacing:0.2em\">%s</h2><p>It expires in 10 minutes.</p>",
			code,
		)
		if err := sender.Send(ctx, to, "Your verification code", html); err != nil {
			slog.ErrorContext(ctx, "failed to send otp email", "error", err)
			observability.RecordEmailSend(ctx, "error")
			return
		}
		observability.RecordEmailSend(ctx, "success")
	}()
}
