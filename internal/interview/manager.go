package interview

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ai-interviewer-go/internal/agent"
	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/speech"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/types"
)

const retryPromptText = "I didn't quite catch that. Could you please repeat your answer?"

var errSTTUnavailable = errors.New("speech-to-text service unavailable")

// CompletionPublisher 面试完成事件的发布入口
type CompletionPublisher interface {
	PublishInterviewCompleted(ctx context.Context, msg *storage.InterviewCompletedMessage) error
}

// sessionRuntime 一条websocket连接上的会话运行态
type sessionRuntime struct {
	// mu 串行化该会话的全部状态转移
	mu          sync.Mutex
	sessionID   string
	socketID    string
	emitter     Emitter
	playbackAck chan struct{}
}

func (rt *sessionRuntime) emit(event string, data interface{}) {
	if err := rt.emitter.Emit(event, data); err != nil {
		logger.Warn().Err(err).
			Str("session_id", rt.sessionID).
			Str("event", event).
			Msg("推送事件失败")
	}
}

// drainAck 清掉上一次播报遗留的确认信号
func (rt *sessionRuntime) drainAck() {
	select {
	case <-rt.playbackAck:
	default:
	}
}

// Manager 面试编排器，驱动每个会话走完固定八题的状态机。
// 所有对外部服务的调用失败都被兜底，不会中断候选人的面试。
type Manager struct {
	sessions    storage.SessionStore
	publisher   CompletionPublisher
	interviewer *agent.Interviewer
	tts         speech.Synthesizer
	stt         speech.Transcriber

	introSettleDelay   time.Duration
	retryDelay         time.Duration
	nextQuestionDelay  time.Duration
	playbackAckTimeout time.Duration

	mu       sync.RWMutex
	runtimes map[string]*sessionRuntime // sessionID -> runtime
	sockets  map[string]string          // socketID -> sessionID
}

// NewManager 创建编排器，publisher和stt允许为nil（降级运行）
func NewManager(
	sessions storage.SessionStore,
	publisher CompletionPublisher,
	interviewer *agent.Interviewer,
	tts speech.Synthesizer,
	stt speech.Transcriber,
	cfg *config.InterviewConfig,
) *Manager {
	return &Manager{
		sessions:           sessions,
		publisher:          publisher,
		interviewer:        interviewer,
		tts:                tts,
		stt:                stt,
		introSettleDelay:   config.GetDuration(cfg.IntroSettleDelay, 2*time.Second),
		retryDelay:         config.GetDuration(cfg.RetryDelay, 3*time.Second),
		nextQuestionDelay:  config.GetDuration(cfg.NextQuestionDelay, 2*time.Second),
		playbackAckTimeout: config.GetDuration(cfg.PlaybackAckTimeout, constants.PlaybackAckTimeout),
		runtimes:           make(map[string]*sessionRuntime),
		sockets:            make(map[string]string),
	}
}

// Attach 把一条连接绑定到会话上，重复绑定时替换旧连接
func (m *Manager) Attach(sessionID, socketID string, emitter Emitter) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.runtimes[sessionID]; ok {
		delete(m.sockets, old.socketID)
	}
	// 同一连接换绑会话时，旧会话的运行态一并清掉
	if prev, ok := m.sockets[socketID]; ok && prev != sessionID {
		delete(m.runtimes, prev)
	}
	m.runtimes[sessionID] = &sessionRuntime{
		sessionID:   sessionID,
		socketID:    socketID,
		emitter:     emitter,
		playbackAck: make(chan struct{}, 1),
	}
	m.sockets[socketID] = sessionID
}

// DetachSocket 连接断开时清理绑定
func (m *Manager) DetachSocket(socketID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessionID, ok := m.sockets[socketID]
	if !ok {
		return
	}
	delete(m.sockets, socketID)
	if rt, ok := m.runtimes[sessionID]; ok && rt.socketID == socketID {
		delete(m.runtimes, sessionID)
	}
	logger.Info().Str("session_id", sessionID).Str("socket_id", socketID).Msg("连接已断开")
}

// ActiveSessions 当前绑定连接的会话数
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runtimes)
}

func (m *Manager) runtime(sessionID string) *sessionRuntime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[sessionID]
}

// PlaybackFinished 客户端播放完成的确认信号，非阻塞
func (m *Manager) PlaybackFinished(sessionID string) {
	rt := m.runtime(sessionID)
	if rt == nil {
		return
	}
	select {
	case rt.playbackAck <- struct{}{}:
	default:
	}
}

// StartInterview 开始面试：开场白播报后进入第一题。
// 整个序列在独立goroutine中执行，避免阻塞连接的读循环。
func (m *Manager) StartInterview(ctx context.Context, sessionID string) {
	rt := m.runtime(sessionID)
	if rt == nil {
		logger.Warn().Str("session_id", sessionID).Msg("会话未绑定连接, 忽略开始请求")
		return
	}

	go func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()

		session, err := m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			rt.emit(EventError, ErrorPayload{Message: "Interview session not found"})
			return
		}
		if session.CurrentState != types.StateCreated {
			rt.emit(EventError, ErrorPayload{Message: "Interview already started"})
			return
		}

		session.CurrentState = types.StateIntro
		session.SocketID = rt.socketID
		session.Touch()
		m.saveSession(ctx, session)

		rt.emit(EventInterviewStarted, InterviewStartedPayload{
			SessionID: sessionID,
			Message:   "Welcome! Your Excel skills assessment is about to begin.",
		})
		m.sleep(ctx, m.introSettleDelay)

		intro := m.interviewer.GenerateIntroduction(session.CandidateInfo)
		m.speak(ctx, rt, intro, speech.KindIntroduction,
			EventAIMessage, AIMessagePayload{Message: intro})

		m.askNextQuestion(ctx, rt, session)
	}()
}

// RequestQuestion 客户端主动请求题目：等待作答时重发当前题，其余状态忽略
func (m *Manager) RequestQuestion(ctx context.Context, sessionID string) {
	rt := m.runtime(sessionID)
	if rt == nil {
		return
	}

	go func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()

		session, err := m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			rt.emit(EventError, ErrorPayload{Message: "Interview session not found"})
			return
		}
		if session.CurrentState != types.StateWaitingResponse || session.CurrentQuestion == "" {
			return
		}

		m.speak(ctx, rt, session.CurrentQuestion, speech.KindQuestion,
			EventAIQuestion, AIQuestionPayload{
				Question:       session.CurrentQuestion,
				QuestionNumber: session.QuestionCount + 1,
				TotalQuestions: constants.MaxQuestions,
			})
		rt.emit(EventStartListening, nil)
	}()
}

// HandleAudioAnswer 处理语音回答：转写、评分并推进状态机
func (m *Manager) HandleAudioAnswer(ctx context.Context, sessionID string, audio []byte, mimeType string) {
	rt := m.runtime(sessionID)
	if rt == nil {
		return
	}

	go func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()

		session, err := m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			rt.emit(EventError, ErrorPayload{Message: "Interview session not found"})
			return
		}
		// 非作答状态收到的回答静默丢弃，不动历史和计数
		if session.CurrentState != types.StateWaitingResponse {
			logger.Debug().
				Str("session_id", sessionID).
				Str("state", string(session.CurrentState)).
				Msg("非作答状态收到音频, 忽略")
			return
		}

		if len(audio) < constants.MinAudioBytes {
			m.promptRetry(ctx, rt, session)
			return
		}

		session.CurrentState = types.StateProcessing
		session.Touch()
		m.saveSession(ctx, session)
		rt.emit(EventStopListening, nil)

		transcript, confidence, err := m.transcribe(ctx, audio, mimeType)
		if err != nil {
			logger.Warn().Err(err).Str("session_id", sessionID).Msg("转写失败, 请候选人重试")
			m.promptRetry(ctx, rt, session)
			return
		}
		if len(strings.TrimSpace(transcript)) < constants.MinTranscriptLen {
			m.promptRetry(ctx, rt, session)
			return
		}

		m.evaluateTurn(ctx, rt, session, transcript, confidence)
	}()
}

// HandleTextAnswer 处理文字回答，置信度按1.0计
func (m *Manager) HandleTextAnswer(ctx context.Context, sessionID, text string) {
	rt := m.runtime(sessionID)
	if rt == nil {
		return
	}

	go func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()

		session, err := m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			rt.emit(EventError, ErrorPayload{Message: "Interview session not found"})
			return
		}
		if session.CurrentState != types.StateWaitingResponse {
			return
		}
		if len(strings.TrimSpace(text)) < constants.MinTranscriptLen {
			m.promptRetry(ctx, rt, session)
			return
		}

		session.CurrentState = types.StateProcessing
		session.Touch()
		m.saveSession(ctx, session)
		rt.emit(EventStopListening, nil)

		m.evaluateTurn(ctx, rt, session, strings.TrimSpace(text), 1.0)
	}()
}

// CompleteInterview 客户端主动收尾，带结束语
func (m *Manager) CompleteInterview(ctx context.Context, sessionID string) {
	m.finishAsync(ctx, sessionID, true)
}

// StopInterview 候选人中途退出，直接标记结束，不播结束语也不触发归档
func (m *Manager) StopInterview(ctx context.Context, sessionID string) {
	m.finishAsync(ctx, sessionID, false)
}

func (m *Manager) finishAsync(ctx context.Context, sessionID string, withRemarks bool) {
	rt := m.runtime(sessionID)
	if rt == nil {
		return
	}

	go func() {
		rt.mu.Lock()
		defer rt.mu.Unlock()

		session, err := m.sessions.GetSession(ctx, sessionID)
		if err != nil {
			rt.emit(EventError, ErrorPayload{Message: "Interview session not found"})
			return
		}
		if session.CurrentState == types.StateCompleted {
			return
		}
		m.complete(ctx, rt, session, withRemarks)
	}()
}

// --- 状态机内部步骤，调用方须持有rt.mu ---

// askNextQuestion 选题、播报并进入等待作答
func (m *Manager) askNextQuestion(ctx context.Context, rt *sessionRuntime, session *types.Session) {
	session.CurrentState = types.StateQuestioning
	question := m.interviewer.NextQuestion(session.CandidateInfo, session.ConversationHistory)
	session.CurrentQuestion = question
	session.Touch()
	m.saveSession(ctx, session)

	m.speak(ctx, rt, question, speech.KindQuestion,
		EventAIQuestion, AIQuestionPayload{
			Question:       question,
			QuestionNumber: session.QuestionCount + 1,
			TotalQuestions: constants.MaxQuestions,
		})

	session.CurrentState = types.StateWaitingResponse
	session.Touch()
	m.saveSession(ctx, session)
	rt.emit(EventStartListening, nil)
}

// promptRetry 无效回答：提示重说，状态回到等待作答，不消耗题目
func (m *Manager) promptRetry(ctx context.Context, rt *sessionRuntime, session *types.Session) {
	session.CurrentState = types.StateWaitingResponse
	session.Touch()
	m.saveSession(ctx, session)

	m.speak(ctx, rt, retryPromptText, speech.KindQuestion,
		EventAIMessage, AIMessagePayload{Message: retryPromptText})
	m.sleep(ctx, m.retryDelay)
	rt.emit(EventStartListening, nil)
}

// evaluateTurn 评分入史、重算总分，然后出下一题或收尾
func (m *Manager) evaluateTurn(ctx context.Context, rt *sessionRuntime, session *types.Session, transcript string, confidence float64) {
	evaluation := m.interviewer.EvaluateAnswer(ctx, session.CurrentQuestion, transcript, confidence)

	session.AppendTurn(types.Turn{
		Question:   session.CurrentQuestion,
		Answer:     transcript,
		Score:      evaluation.Score,
		Feedback:   evaluation.Feedback,
		Timestamp:  time.Now(),
		Evaluation: evaluation,
	})
	session.RecomputeOverallScores()
	session.CurrentQuestion = ""
	session.Touch()
	m.saveSession(ctx, session)

	rt.emit(EventScoresUpdated, ScoresUpdatedPayload{
		Scores:        session.OverallScores,
		QuestionCount: session.QuestionCount,
	})
	rt.emit(EventQuestionCompleted, QuestionCompletedPayload{
		QuestionNumber: session.QuestionCount,
		Transcript:     transcript,
		Confidence:     confidence,
		Evaluation:     evaluation,
	})

	if session.Finished() {
		m.complete(ctx, rt, session, true)
		return
	}

	m.sleep(ctx, m.nextQuestionDelay)
	m.askNextQuestion(ctx, rt, session)
}

// complete 收尾：可选结束语、终态事件，自然完成时发布归档消息
func (m *Manager) complete(ctx context.Context, rt *sessionRuntime, session *types.Session, withRemarks bool) {
	session.CurrentState = types.StateCompleted
	session.CurrentQuestion = ""
	session.Touch()
	m.saveSession(ctx, session)

	var remarks string
	if withRemarks {
		remarks = m.interviewer.GenerateClosingRemarks(session.OverallScores, session.QuestionCount)
		m.speak(ctx, rt, remarks, speech.KindIntroduction,
			EventAIMessage, AIMessagePayload{Message: remarks})
	}

	rt.emit(EventInterviewCompleted, InterviewCompletedPayload{
		SessionID:     session.SessionID,
		Scores:        session.OverallScores,
		QuestionCount: session.QuestionCount,
		Message:       remarks,
	})

	if withRemarks {
		m.publishCompleted(session.SessionID)
	}
	logger.Info().
		Str("session_id", session.SessionID).
		Float64("overall", session.OverallScores.Overall).
		Int("questions", session.QuestionCount).
		Msg("面试结束")
}

func (m *Manager) publishCompleted(sessionID string) {
	if m.publisher == nil {
		logger.Warn().Str("session_id", sessionID).Msg("消息队列不可用, 跳过归档事件")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := m.publisher.PublishInterviewCompleted(ctx, &storage.InterviewCompletedMessage{
		SessionID:   sessionID,
		CompletedAt: time.Now(),
	})
	if err != nil {
		logger.Error().Err(err).Str("session_id", sessionID).Msg("发布面试完成事件失败")
	}
}

// speak 播报一段文本：事件 + 合成音频，然后等客户端播放完成确认。
// 确认超时走兜底，保证状态机不被卡死。
func (m *Manager) speak(ctx context.Context, rt *sessionRuntime, text string, kind speech.SpeechKind, event string, payload interface{}) {
	rt.drainAck()
	rt.emit(EventAISpeaking, AISpeakingPayload{Speaking: true})
	rt.emit(event, payload)

	audio, synthesized := m.tts.Synthesize(ctx, text, kind)
	format := "audio/wav"
	if synthesized {
		format = "audio/mpeg"
	}
	rt.emit(EventAIAudio, AIAudioPayload{Audio: audio, Format: format})

	m.waitPlayback(ctx, rt)
	rt.emit(EventAISpeaking, AISpeakingPayload{Speaking: false})
}

func (m *Manager) waitPlayback(ctx context.Context, rt *sessionRuntime) {
	select {
	case <-rt.playbackAck:
	case <-time.After(m.playbackAckTimeout):
		logger.Warn().Str("session_id", rt.sessionID).Msg("等待播放确认超时, 继续流程")
	case <-ctx.Done():
	}
}

func (m *Manager) transcribe(ctx context.Context, audio []byte, mimeType string) (string, float64, error) {
	if m.stt == nil {
		return "", 0, errSTTUnavailable
	}
	return m.stt.Transcribe(ctx, audio, mimeType)
}

func (m *Manager) saveSession(ctx context.Context, session *types.Session) {
	if err := m.sessions.SaveSession(ctx, session); err != nil {
		logger.Error().Err(err).Str("session_id", session.SessionID).Msg("保存会话失败")
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
