package services

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

	"fii-monitor/config"
	"fii-monitor/observability"
)

// TelegramService sends messages through the Telegram Bot API
type TelegramService struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

// BotInfo identifies the bot behind the configured token
type BotInfo struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// TelegramAPIError is a non-OK answer from the Bot API
type TelegramAPIError struct {
	StatusCode  int
	Description string
}

func (e *TelegramAPIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.StatusCode, e.Description)
}

// Temporary reports whether resending the same request might succeed
func (e *TelegramAPIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type telegramEnvelope struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// TelegramRetryConfig retries transient send failures a couple of times
var TelegramRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: time.Second,
	MaxBackoff:     4 * time.Second,
	Retryable:      isTransientTelegramError,
}

// NewTelegramService creates a new TelegramService instance
func NewTelegramService(cfg config.TelegramConfig) (*TelegramService, error) {
	if cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, errors.New("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	return &TelegramService{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Send posts an HTML message to the configured chat
func (s *TelegramService) Send(ctx context.Context, text string) error {
	payload := sendMessageRequest{
		ChatID:                s.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	}
	_, err := s.call(ctx, "sendMessage", http.MethodPost, payload)
	return err
}

// SendWithRetry is Send with backoff on transient failures
func (s *TelegramService) SendWithRetry(ctx context.Context, text string) error {
	return WithRetry(ctx, TelegramRetryConfig, func() error {
		return s.Send(ctx, text)
	})
}

// GetMe checks the token and returns the bot identity
func (s *TelegramService) GetMe(ctx context.Context) (*BotInfo, error) {
	raw, err := s.call(ctx, "getMe", http.MethodGet, nil)
	if err != nil {
		return nil, err
	}
	var info BotInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("telegram decode getMe: %w", err)
	}
	return &info, nil
}

func (s *TelegramService) call(ctx context.Context, method, httpMethod string, payload any) (json.RawMessage, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerTelegram, method)
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerTelegram, func() (json.RawMessage, error) {
		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("marshal payload: %w", err)
			}
			body = bytes.NewReader(b)
		}

		apiURL := fmt.Sprintf("%s/bot%s/%s", s.baseURL, s.botToken, method)
		req, err := http.NewRequestWithContext(ctx, httpMethod, apiURL, body)
		if err != nil {
			return nil, err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.Do(req)
		if err != nil {
			// the URL carries the token, so keep it out of the message
			return nil, fmt.Errorf("telegram %s: %w", method, unwrapURLError(err))
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("telegram read body: %w", err)
		}

		var env telegramEnvelope
		_ = json.Unmarshal(respBody, &env)
		if resp.StatusCode != http.StatusOK || !env.OK {
			desc := env.Description
			if desc == "" {
				desc = strings.TrimSpace(string(respBody))
			}
			return nil, &TelegramAPIError{StatusCode: resp.StatusCode, Description: desc}
		}
		return env.Result, nil
	})

	timer.ObserveExternalAPI(BreakerTelegram, method)
	if err != nil {
		metrics.RecordExternalAPIError(BreakerTelegram, method, categorizeAPIError(err))
	}
	return result, err
}

func unwrapURLError(err error) error {
	if inner := errors.Unwrap(err); inner != nil {
		return inner
	}
	return err
}

func isTransientTelegramError(err error) bool {
	var apiErr *TelegramAPIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
