package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/kapu/gemini-telegram-bot-go/internal/config"
	"github.com/kapu/gemini-telegram-bot-go/internal/llm"
)

// Client 는 Gemini 호출을 담당한다. API 키가 여러 개면
// 호출마다 순환한다.
type Client struct {
	cfg       *config.Config
	mu        sync.Mutex
	clients   map[string]*genai.Client
	apiKeys   []string
	apiKeyIdx int
}

// NewClient 는 Gemini 클라이언트를 생성한다.
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if len(cfg.Gemini.APIKeys) == 0 {
		return nil, config.ErrMissingAPIKey
	}
	return &Client{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
		apiKeys: cfg.Gemini.APIKeys,
	}, nil
}

// Chat 은 전체 턴 히스토리와 새 사용자 메시지로 응답을 생성한다.
// 네트워크 I/O 동안 블로킹되며, 타임아웃은 genai 클라이언트에 걸려 있다.
func (c *Client) Chat(ctx context.Context, history []llm.Turn, prompt string) (llm.ChatResult, error) {
	client, err := c.selectClient(ctx)
	if err != nil {
		return llm.ChatResult{}, err
	}

	contents := buildContents(history, prompt)
	response, err := client.Models.GenerateContent(ctx, c.cfg.Gemini.Model, contents, c.buildGenerateConfig())
	if err != nil {
		return llm.ChatResult{}, fmt.Errorf("generate content: %w", err)
	}

	usage, hasUsage := extractUsage(response)
	return llm.ChatResult{
		Text:     response.Text(),
		Usage:    usage,
		HasUsage: hasUsage,
	}, nil
}

func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.apiKeys[c.apiKeyIdx%len(c.apiKeys)]
	c.apiKeyIdx++
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	timeout := time.Duration(c.cfg.Gemini.TimeoutSeconds) * time.Second
	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			Timeout: genai.Ptr(timeout),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	c.clients[key] = client
	return client, nil
}

func (c *Client) buildGenerateConfig() *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.cfg.Gemini.Temperature)),
		MaxOutputTokens: int32(c.cfg.Gemini.MaxOutputTokens),
	}
}

func buildContents(history []llm.Turn, prompt string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, turn := range history {
		var role genai.Role = genai.RoleUser
		if strings.EqualFold(turn.Role, llm.RoleModel) {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
	return contents
}

// extractUsage 는 응답의 사용량 메타데이터를 추출한다. 메타데이터가
// 아예 없으면 false 를 반환하며, 호출자는 원장 기록을 건너뛴다.
func extractUsage(response *genai.GenerateContentResponse) (llm.Usage, bool) {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}, false
	}
	usage := response.UsageMetadata
	return llm.Usage{
		InputTokens:  int(usage.PromptTokenCount),
		OutputTokens: int(usage.CandidatesTokenCount),
		TotalTokens:  int(usage.TotalTokenCount),
	}, true
}
