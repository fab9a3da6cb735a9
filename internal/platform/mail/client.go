package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumenpress/editorial-core/internal/platform/envutil"
	"github.com/lumenpress/editorial-core/internal/platform/logger"
)

// Client sends transactional email. Delivery is advisory for every caller in
// this module; failures are logged upstream, never propagated.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

type Message struct {
	ToEmail string
	ToName  string
	Subject string
	Body    string
}

type Config struct {
	APIKey    string
	BaseURL   string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:    envutil.String("MAIL_API_KEY", ""),
		BaseURL:   envutil.String("MAIL_BASE_URL", "https://api.sendgrid.com/v3/mail/send"),
		FromEmail: envutil.String("MAIL_FROM_EMAIL", ""),
		FromName:  envutil.String("MAIL_FROM_NAME", "Editorial Office"),
		Timeout:   envutil.Duration("MAIL_TIMEOUT", 30*time.Second),
	}
}

func NewFromEnv(log *logger.Logger) (Client, error) {
	return New(log, ConfigFromEnv())
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("missing MAIL_API_KEY")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, fmt.Errorf("missing MAIL_FROM_EMAIL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &client{
		log: log.With("service", "MailClient"),
		cfg: cfg,
		hc:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type client struct {
	log *logger.Logger
	cfg Config
	hc  *http.Client
}

func (c *client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ToEmail) == "" {
		return fmt.Errorf("missing recipient email")
	}
	payload := map[string]any{
		"personalizations": []map[string]any{
			{"to": []map[string]string{{"email": msg.ToEmail, "name": msg.ToName}}},
		},
		"from":    map[string]string{"email": c.cfg.FromEmail, "name": c.cfg.FromName},
		"subject": msg.Subject,
		"content": []map[string]string{{"type": "text/plain", "value": msg.Body}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("mail send: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail send: unexpected status %d", resp.StatusCode)
	}
	return nil
}
