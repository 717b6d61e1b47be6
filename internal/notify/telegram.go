package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
)

const (
	defaultAPIURL  = "https://api.telegram.org"
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 512
)

type TelegramConfig struct {
	Token   string
	ChatID  string
	APIURL  string
	Timeout time.Duration
}

func (c TelegramConfig) Validate() error {
	errFactory := errors.New()

	if c.Token == "" {
		return errFactory.WithData(ErrInvalidConfig, "telegram.token")
	}
	if c.ChatID == "" {
		return errFactory.WithData(ErrInvalidConfig, "telegram.chat_id")
	}

	return nil
}

// Telegram sends alerts through the Bot API sendMessage method.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
	log    logger.Logger
}

type TelegramOption func(*Telegram)

// WithHTTPClient replaces the HTTP client, e.g. to intercept requests in tests.
func WithHTTPClient(client *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = client
	}
}

func NewTelegram(cfg TelegramConfig, opts ...TelegramOption) (*Telegram, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	t := &Telegram{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logger.Component("notify").With("notifier", "telegram"),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, text string) error {
	errFactory := errors.New()

	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	query := url.Values{}
	query.Set("chat_id", t.cfg.ChatID)
	query.Set("text", text)
	endpoint := t.cfg.APIURL + "/bot" + t.cfg.Token + "/sendMessage?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errFactory.Wrap(ErrBuildRequest, err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errFactory.Wrap(ErrDeliveryTimeout, ctx.Err())
		}
		// Strip the URL, it carries the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return errFactory.Wrap(ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload telegramResponse
		_ = json.Unmarshal(body, &payload)
		return errFactory.WithData(ErrRejected, struct {
			Status      int
			Description string
		}{
			Status:      resp.StatusCode,
			Description: payload.Description,
		})
	}

	t.log.Info().Int("status", resp.StatusCode).Msg("Sent telegram message")

	return nil
}
