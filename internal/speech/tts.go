package speech

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/logger"
)

// SpeechKind 播报内容类型，不同类型使用不同的语音参数
type SpeechKind string

const (
	// KindIntroduction 开场白和结束语，语调更平稳
	KindIntroduction SpeechKind = "introduction"
	// KindQuestion 题目播报，语调更有起伏
	KindQuestion SpeechKind = "question"
)

// voiceSettings ElevenLabs的语音合成参数
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// 按内容类型固定的语音参数
var voicePresets = map[SpeechKind]voiceSettings{
	KindIntroduction: {Stability: 0.75, SimilarityBoost: 0.8, Style: 0.25, UseSpeakerBoost: true},
	KindQuestion:     {Stability: 0.65, SimilarityBoost: 0.75, Style: 0.4, UseSpeakerBoost: true},
}

// Synthesizer 语音合成接口
type Synthesizer interface {
	// Synthesize 合成语音，永远返回可播放的音频（失败时为静音占位）
	Synthesize(ctx context.Context, text string, kind SpeechKind) ([]byte, bool)
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// ElevenLabsTTS 基于ElevenLabs REST API的语音合成
type ElevenLabsTTS struct {
	apiKey     string
	apiURL     string
	voiceID    string
	modelID    string
	httpClient *http.Client
}

var _ Synthesizer = (*ElevenLabsTTS)(nil)

// NewElevenLabsTTS 创建语音合成客户端，apiKey为空时合成全部降级为静音占位
func NewElevenLabsTTS(cfg *config.ElevenLabsConfig) *ElevenLabsTTS {
	apiURL := cfg.APIURL
	if strings.TrimSpace(apiURL) == "" {
		apiURL = "https://api.elevenlabs.io/v1/text-to-speech"
	}
	modelID := cfg.ModelID
	if strings.TrimSpace(modelID) == "" {
		modelID = "eleven_multilingual_v2"
	}
	timeout := 30 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &ElevenLabsTTS{
		apiKey:     cfg.APIKey,
		apiURL:     strings.TrimRight(apiURL, "/"),
		voiceID:    cfg.VoiceID,
		modelID:    modelID,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Synthesize 合成语音。返回音频字节和是否为真实语音的标记，
// API未配置或调用失败时返回静音WAV，面试流程不因此中断。
func (t *ElevenLabsTTS) Synthesize(ctx context.Context, text string, kind SpeechKind) ([]byte, bool) {
	if t.apiKey == "" || t.voiceID == "" {
		return SilentWAV(time.Second), false
	}

	audio, err := t.synthesize(ctx, text, kind)
	if err != nil {
		logger.Warn().Err(err).Str("kind", string(kind)).Msg("语音合成失败, 使用静音占位")
		return SilentWAV(time.Second), false
	}
	return audio, true
}

func (t *ElevenLabsTTS) synthesize(ctx context.Context, text string, kind SpeechKind) ([]byte, error) {
	settings, ok := voicePresets[kind]
	if !ok {
		settings = voicePresets[KindQuestion]
	}

	reqPayload := ttsRequest{
		Text:          text,
		ModelID:       t.modelID,
		VoiceSettings: settings,
	}
	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化TTS请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/%s", t.apiURL, t.voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建TTS请求失败: %w", err)
	}
	httpReq.Header.Set("xi-api-key", t.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/mpeg")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送TTS请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("TTS请求失败，状态 %s: %s", httpResp.Status, string(body))
	}

	audio, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取TTS音频失败: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("TTS返回空音频")
	}
	return audio, nil
}

const (
	silentSampleRate = 16000
	silentBitDepth   = 16
)

// SilentWAV 生成指定时长的静音WAV，作为合成失败时的占位音频
func SilentWAV(d time.Duration) []byte {
	numSamples := int(float64(silentSampleRate) * d.Seconds())
	dataSize := numSamples * silentBitDepth / 8

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt块: PCM, 单声道
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint16(1))
	binary.Write(buf, binary.LittleEndian, uint32(silentSampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(silentSampleRate*silentBitDepth/8))
	binary.Write(buf, binary.LittleEndian, uint16(silentBitDepth/8))
	binary.Write(buf, binary.LittleEndian, uint16(silentBitDepth))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))

	return buf.Bytes()
}
