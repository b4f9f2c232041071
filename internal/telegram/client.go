package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/httpclient"
)

// ParseModeMarkdown 는 리치 포맷 전송 모드다.
const ParseModeMarkdown = "Markdown"

// ActionTyping 는 "입력 중" 표시 액션이다.
const ActionTyping = "typing"

// Client 는 텔레그램 봇 API 클라이언트다.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	pollTimeout int
	logger      *slog.Logger
}

// NewClient 는 봇 API 클라이언트를 생성한다.
func NewClient(cfg config.TelegramConfig, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, config.ErrMissingBotToken
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	// 롱폴링 응답은 pollTimeout 초까지 지연되므로 클라이언트
	// 타임아웃은 그보다 여유 있게 잡는다.
	client := httpclient.New(httpclient.Config{
		Timeout:        time.Duration(cfg.PollTimeoutSeconds+15) * time.Second,
		ConnectTimeout: 10 * time.Second,
	})

	return &Client{
		baseURL:     strings.TrimRight(cfg.APIBaseURL, "/"),
		token:       cfg.BotToken,
		http:        client,
		pollTimeout: cfg.PollTimeoutSeconds,
		logger:      logger,
	}, nil
}

// GetUpdates 는 offset 이후의 업데이트를 롱폴링으로 받아온다.
func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	payload := getUpdatesRequest{
		Offset:         offset,
		Timeout:        c.pollTimeout,
		AllowedUpdates: []string{"message"},
	}

	var updates []Update
	if err := c.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SendMessage 는 텍스트를 전송한다. markdown 이 참이면 리치 포맷으로
// 보내며, 포맷이 거절될 수 있으므로 호출자가 플레인 재시도를 책임진다.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, markdown bool) error {
	payload := sendMessageRequest{ChatID: chatID, Text: text}
	if markdown {
		payload.ParseMode = ParseModeMarkdown
	}
	return c.call(ctx, "sendMessage", payload, nil)
}

// SendChatAction 는 일시적 상태 표시를 보낸다. 실패해도 무해하다.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.call(ctx, "sendChatAction", sendChatActionRequest{ChatID: chatID, Action: action}, nil)
}

// DeleteWebhook 는 등록된 웹훅을 제거한다. 롱폴링 시작 전에 호출한다.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", deleteWebhookRequest{DropPendingUpdates: dropPending}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()
	}()

	var env envelope
	if err := json.NewDecoder(response.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}

	if !env.OK {
		return &APIError{Code: env.ErrorCode, Description: env.Description}
	}

	if out != nil {
		if len(env.Result) == 0 {
			return fmt.Errorf("%s: empty result", method)
		}
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// IsFormattingError 는 리치 포맷 파싱 거절(400)인지 추정한다.
// 플레인 재시도 판단에만 쓰인다.
func IsFormattingError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest
}
