package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-interviewer-go/internal/logger"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	// Gemini的OpenAI兼容端点
	openAICompatibleGeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	defaultGeminiModelName       = "gemini-1.5-flash"
)

// GeminiChatModel 实现了 model.ChatModel 接口，
// 通过OpenAI兼容端点与Google Gemini模型交互。
type GeminiChatModel struct {
	apiKey      string
	modelName   string
	apiURL      string
	temperature float64
	maxTokens   int
	httpClient  *http.Client
}

// GeminiModelOption 模型配置选项
type GeminiModelOption func(*GeminiChatModel)

// WithTemperature 设置采样温度
func WithTemperature(t float64) GeminiModelOption {
	return func(m *GeminiChatModel) {
		m.temperature = t
	}
}

// WithMaxTokens 设置最大输出token数
func WithMaxTokens(n int) GeminiModelOption {
	return func(m *GeminiChatModel) {
		m.maxTokens = n
	}
}

// NewGeminiChatModel 创建一个新的 GeminiChatModel 实例。
func NewGeminiChatModel(apiKey string, modelName string, apiURL string, options ...GeminiModelOption) (*GeminiChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	mn := modelName
	if strings.TrimSpace(mn) == "" {
		mn = defaultGeminiModelName
	}

	url := apiURL
	if strings.TrimSpace(url) == "" {
		url = openAICompatibleGeminiAPIURL
	}

	m := &GeminiChatModel{
		apiKey:     apiKey,
		modelName:  mn,
		apiURL:     url,
		httpClient: &http.Client{},
	}
	for _, opt := range options {
		opt(m)
	}

	logger.Info().Str("api_url", url).Str("model", mn).Msg("Gemini LLM 客户端已初始化")
	return m, nil
}

// --- OpenAI Compatible Request/Response Structures ---

type openAIChatCompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Temperature float64           `json:"temperature,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string  `json:"role"`
	Content *string `json:"content"`
}

type openAIChatChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAICompletionResponse struct {
	Id      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
}

// Generate 实现 model.ChatModel 接口
func (g *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	for _, opt := range options {
		_ = opt
	}

	reqPayload := openAIChatCompletionRequest{
		Model:       g.modelName,
		Messages:    messages,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, string(bodyBytes))
	}

	var openAIResp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &openAIResp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w。响应体: %s", err, string(bodyBytes))
	}

	if len(openAIResp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项: %s", string(bodyBytes))
	}

	apiMessage := openAIResp.Choices[0].Message
	responseContent := ""
	if apiMessage.Content != nil {
		responseContent = *apiMessage.Content
	}

	resultMessage := &schema.Message{
		Role:    schema.RoleType(apiMessage.Role),
		Content: responseContent,
	}
	if resultMessage.Role == "" {
		resultMessage.Role = schema.Assistant
	}

	return resultMessage, nil
}

// Stream 实现 model.ChatModel 接口。面试流程逐条消费完整回复，未实现流式。
func (g *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GeminiChatModel 的 Stream 方法未实现")
}

// BindTools 实现 model.ChatModel 接口。面试评分不使用工具调用。
func (g *GeminiChatModel) BindTools(tools []*schema.ToolInfo) error {
	return fmt.Errorf("GeminiChatModel 不支持工具调用")
}

var _ model.ChatModel = (*GeminiChatModel)(nil)
