package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"NoccStacks-Crew/internal/llm"
)

const (
	defaultModelName = "gemini-2.0-flash"
	providerName     = "Gemini"
)

// Config 描述了调用 Gemini API 所需的信息。
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Client 通过 google.golang.org/genai 调用 Gemini 模型。
type Client struct {
	model  string
	client *genai.Client
}

// NewClient 根据配置创建 Gemini 客户端。
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("未提供 Gemini API Key")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModelName
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &Client{model: model, client: client}, nil
}

// Generate 将对话历史转换为 genai.Content 并调用 GenerateContent。
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	var config *genai.GenerateContentConfig
	if system := strings.TrimSpace(req.System); system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, llm.ClassifyError(providerName, err)
	}

	content := strings.TrimSpace(result.Text())
	if content == "" {
		return nil, llm.ClassifyError(providerName, errors.New("Gemini 响应内容为空"))
	}

	resp := &llm.Response{Content: content}
	if usage := result.UsageMetadata; usage != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     int(usage.PromptTokenCount),
			CompletionTokens: int(usage.CandidatesTokenCount),
			TotalTokens:      int(usage.TotalTokenCount),
		}
	}
	return resp, nil
}

var _ llm.Client = (*Client)(nil)
