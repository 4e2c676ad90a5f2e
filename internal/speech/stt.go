package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-interviewer-go/internal/agent"
	"ai-interviewer-go/internal/config"
)

// Transcriber 语音转写接口
type Transcriber interface {
	// Transcribe 转写音频为文本，返回文本和置信度估计 [0,1]
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, float64, error)
}

const transcribePrompt = "Please transcribe this audio to text. Only return the transcribed text, no additional commentary or formatting."

// GeminiSTT 通过Gemini原生generateContent端点做音频转写
type GeminiSTT struct {
	apiKey     string
	apiURL     string
	model      string
	httpClient *http.Client
}

var _ Transcriber = (*GeminiSTT)(nil)

// NewGeminiSTT 创建转写客户端
func NewGeminiSTT(cfg *config.GeminiConfig) (*GeminiSTT, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}

	apiURL := cfg.NativeAPIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = "https://generativelanguage.googleapis.com/v1beta/models"
	}
	model := cfg.STTModel
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-flash"
	}

	return &GeminiSTT{
		apiKey:     cfg.APIKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

// --- Gemini原生API的请求/响应结构 ---

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Transcribe 将音频内联为base64发给Gemini做转写
func (g *GeminiSTT) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, float64, error) {
	if len(audio) == 0 {
		return "", 0, fmt.Errorf("音频数据为空")
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	reqPayload := geminiGenerateRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{
					{InlineData: &geminiInlineData{
						MimeType: mimeType,
						Data:     base64.StdEncoding.EncodeToString(audio),
					}},
					{Text: transcribePrompt},
				},
			},
		},
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return "", 0, fmt.Errorf("序列化转写请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.apiURL, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", 0, fmt.Errorf("创建转写请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("发送转写请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("读取转写响应失败: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("转写请求失败，状态 %s: %s", httpResp.Status, truncateBody(bodyBytes))
	}

	var resp geminiGenerateResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return "", 0, fmt.Errorf("反序列化转写响应失败: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", 0, fmt.Errorf("转写响应为空")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	transcript := strings.TrimSpace(sb.String())

	return transcript, EstimateConfidence(transcript), nil
}

// EstimateConfidence 对转写文本做确定性的置信度估计。
// API本身不返回置信度，这里按文本长度、可疑标记、犹豫措辞和
// Excel术语出现情况粗略打分，结果用于评分时的音质扣分提示。
func EstimateConfidence(transcript string) float64 {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return 0
	}

	confidence := 0.95
	if len(trimmed) < 20 {
		confidence = 0.6
	} else if len(trimmed) < 50 {
		confidence = 0.8
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "[inaudible]") || strings.Contains(lower, "[unclear]") ||
		strings.Contains(lower, "...") {
		confidence -= 0.3
	}

	// 犹豫措辞越多越可能是没听清后的含糊复述，最多扣三次
	hedges := 0
	for _, phrase := range agent.UncertaintyPhrases {
		if strings.Contains(lower, phrase) {
			hedges++
		}
	}
	if hedges > 3 {
		hedges = 3
	}
	confidence -= 0.15 * float64(hedges)

	// 完全不含Excel术语的回答更可能转写失真
	hasKeyword := false
	for _, keyword := range agent.ExcelKeywords {
		if strings.Contains(lower, keyword) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		confidence -= 0.15
	}

	if confidence < 0.1 {
		confidence = 0.1
	}
	return confidence
}

func truncateBody(b []byte) string {
	if len(b) > 300 {
		return string(b[:300]) + "..."
	}
	return string(b)
}
