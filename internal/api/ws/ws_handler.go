package ws

import (
	"context"
	"encoding/json"
	"sync"

	"ai-interviewer-go/internal/interview"
	"ai-interviewer-go/internal/logger"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/gofrs/uuid/v5"
	"github.com/hertz-contrib/websocket"
)

// connEmitter 把编排器事件写回websocket连接，写操作串行化
type connEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (e *connEmitter) Emit(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.WriteJSON(interview.Envelope{
		Event: event,
		Data:  payload,
	})
}

// Handler websocket入口，把客户端事件分发给编排器
type Handler struct {
	manager  *interview.Manager
	upgrader websocket.HertzUpgrader
}

// NewHandler 创建websocket处理器
func NewHandler(manager *interview.Manager) *Handler {
	return &Handler{
		manager: manager,
		upgrader: websocket.HertzUpgrader{
			// 前端跑在独立端口上
			CheckOrigin: func(ctx *app.RequestContext) bool { return true },
		},
	}
}

// Serve 升级连接并运行读循环
func (h *Handler) Serve(ctx context.Context, c *app.RequestContext) {
	err := h.upgrader.Upgrade(c, func(conn *websocket.Conn) {
		socketID := uuid.Must(uuid.NewV7()).String()
		emitter := &connEmitter{conn: conn}
		defer h.manager.DetachSocket(socketID)

		logger.Info().Str("socket_id", socketID).Msg("websocket连接建立")
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				logger.Info().Err(err).Str("socket_id", socketID).Msg("websocket连接关闭")
				return
			}
			h.dispatch(ctx, socketID, emitter, data)
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("websocket升级失败")
	}
}

// dispatch 解析信封并路由到对应的编排器操作
func (h *Handler) dispatch(ctx context.Context, socketID string, emitter *connEmitter, data []byte) {
	var envelope interview.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		_ = emitter.Emit(interview.EventError, interview.ErrorPayload{Message: "Malformed message"})
		return
	}

	switch envelope.Event {
	case interview.EventStartInterview:
		var payload interview.SessionRefPayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.Attach(payload.SessionID, socketID, emitter)
		h.manager.StartInterview(ctx, payload.SessionID)

	case interview.EventRequestQuestion:
		var payload interview.SessionRefPayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.RequestQuestion(ctx, payload.SessionID)

	case interview.EventAudioResponse, interview.EventAudioData:
		var payload interview.AudioResponsePayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.HandleAudioAnswer(ctx, payload.SessionID, payload.Audio, payload.MimeType)

	case interview.EventTextResponse:
		var payload interview.TextResponsePayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.HandleTextAnswer(ctx, payload.SessionID, payload.Text)

	case interview.EventPlaybackFinished:
		var payload interview.SessionRefPayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.PlaybackFinished(payload.SessionID)

	case interview.EventCompleteInterview:
		var payload interview.SessionRefPayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.CompleteInterview(ctx, payload.SessionID)

	case interview.EventStopInterview:
		var payload interview.SessionRefPayload
		if !h.decode(emitter, envelope.Data, &payload) {
			return
		}
		h.manager.StopInterview(ctx, payload.SessionID)

	default:
		_ = emitter.Emit(interview.EventError, interview.ErrorPayload{
			Message: "Unknown event: " + envelope.Event,
		})
	}
}

func (h *Handler) decode(emitter *connEmitter, raw json.RawMessage, out interface{}) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		_ = emitter.Emit(interview.EventError, interview.ErrorPayload{Message: "Malformed payload"})
		return false
	}
	return true
}
