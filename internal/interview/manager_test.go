package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai-interviewer-go/internal/agent"
	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/speech"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordedEvent 捕获到的一条推送
type recordedEvent struct {
	name string
	data interface{}
}

// recordingEmitter 记录所有推送事件的测试桩
type recordingEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *recordingEmitter) Emit(event string, data interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{name: event, data: data})
	return nil
}

func (e *recordingEmitter) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.name
	}
	return out
}

func (e *recordingEmitter) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev.name == event {
			n++
		}
	}
	return n
}

// waitFor 轮询等待某事件出现
func (e *recordingEmitter) waitFor(t *testing.T, event string, timeout time.Duration) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.count(event) > 0 {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// stubTTS 返回固定音频
type stubTTS struct{}

func (stubTTS) Synthesize(ctx context.Context, text string, kind speech.SpeechKind) ([]byte, bool) {
	return []byte("audio"), true
}

// stubSTT 返回固定转写结果
type stubSTT struct {
	transcript string
	confidence float64
	err        error
}

func (s *stubSTT) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, float64, error) {
	return s.transcript, s.confidence, s.err
}

// stubPublisher 记录发布的完成事件
type stubPublisher struct {
	mu   sync.Mutex
	msgs []*storage.InterviewCompletedMessage
}

func (p *stubPublisher) PublishInterviewCompleted(ctx context.Context, msg *storage.InterviewCompletedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *stubPublisher) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}

func testConfig() *config.InterviewConfig {
	return &config.InterviewConfig{
		IntroSettleDelay:   "1ms",
		RetryDelay:         "1ms",
		NextQuestionDelay:  "1ms",
		PlaybackAckTimeout: "20ms",
	}
}

func newTestManager(stt speech.Transcriber) (*Manager, storage.SessionStore, *stubPublisher) {
	store := storage.NewMemoryStore()
	publisher := &stubPublisher{}
	interviewer := agent.NewInterviewer(nil)
	m := NewManager(store, publisher, interviewer, stubTTS{}, stt, testConfig())
	return m, store, publisher
}

func seedSession(t *testing.T, store storage.SessionStore, state types.SessionState, questionCount int) *types.Session {
	t.Helper()
	session := types.NewSession("sess-1", types.CandidateProfile{
		Name:            "Priya",
		Email:           "priya@example.com",
		Skills:          []string{"excel", "vlookup"},
		ExperienceLevel: types.LevelIntermediate,
	})
	session.CurrentState = state
	session.QuestionCount = questionCount
	for i := 0; i < questionCount; i++ {
		session.ConversationHistory = append(session.ConversationHistory, types.Turn{
			Question:   "q",
			Answer:     "a",
			Score:      6,
			Evaluation: types.Evaluation{Score: 6, Technical: 6, Practical: 6, Communication: 6, Completeness: 6},
		})
	}
	if state == types.StateWaitingResponse {
		session.CurrentQuestion = "Can you explain what a pivot table is used for?"
	}
	require.NoError(t, store.SaveSession(context.Background(), session))
	return session
}

func TestStartInterviewRunsIntroAndFirstQuestion(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateCreated, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.StartInterview(context.Background(), "sess-1")

	require.True(t, em.waitFor(t, EventStartListening, 2*time.Second))
	names := em.names()
	assert.Contains(t, names, EventInterviewStarted)
	assert.Contains(t, names, EventAIMessage)
	assert.Contains(t, names, EventAIQuestion)
	assert.Contains(t, names, EventAIAudio)

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateWaitingResponse, session.CurrentState)
	assert.NotEmpty(t, session.CurrentQuestion)
}

func TestStartInterviewTwiceReportsError(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateWaitingResponse, 1)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.StartInterview(context.Background(), "sess-1")

	require.True(t, em.waitFor(t, EventError, time.Second))
	assert.Zero(t, em.count(EventInterviewStarted))
}

func TestAnswerInWrongStateSilentlyIgnored(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateCreated, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.HandleTextAnswer(context.Background(), "sess-1", "a perfectly good answer")

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, em.names())

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Zero(t, session.QuestionCount)
	assert.Empty(t, session.ConversationHistory)
}

func TestShortAudioPromptsRetry(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{transcript: "ignored"})
	seedSession(t, store, types.StateWaitingResponse, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.HandleAudioAnswer(context.Background(), "sess-1", []byte("tiny"), "audio/webm")

	require.True(t, em.waitFor(t, EventStartListening, 2*time.Second))
	assert.Equal(t, 1, em.count(EventAIMessage))

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	// 无效回答不消耗题目
	assert.Zero(t, session.QuestionCount)
	assert.Equal(t, types.StateWaitingResponse, session.CurrentState)
}

func TestTextAnswerAdvancesToNextQuestion(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateWaitingResponse, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.HandleTextAnswer(context.Background(), "sess-1",
		"A pivot table summarizes data by grouping rows and aggregating values, for example monthly sales totals.")

	require.True(t, em.waitFor(t, EventAIQuestion, 2*time.Second))
	require.True(t, em.waitFor(t, EventStartListening, 2*time.Second))
	assert.Equal(t, 1, em.count(EventScoresUpdated))
	assert.Equal(t, 1, em.count(EventQuestionCompleted))

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, session.QuestionCount)
	require.Len(t, session.ConversationHistory, 1)
	assert.Greater(t, session.OverallScores.Overall, 0.0)
	assert.Equal(t, types.StateWaitingResponse, session.CurrentState)
}

func TestFinalAnswerCompletesInterview(t *testing.T) {
	m, store, publisher := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateWaitingResponse, 7)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.HandleTextAnswer(context.Background(), "sess-1",
		"I would use Power Query to clean the data and a pivot table for the summary.")

	require.True(t, em.waitFor(t, EventInterviewCompleted, 2*time.Second))

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, session.CurrentState)
	assert.Equal(t, 8, session.QuestionCount)
	assert.Equal(t, 1, publisher.published())
}

func TestTranscriptionFailurePromptsRetry(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{err: errSTTUnavailable})
	seedSession(t, store, types.StateWaitingResponse, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.HandleAudioAnswer(context.Background(), "sess-1", make([]byte, 4096), "audio/webm")

	require.True(t, em.waitFor(t, EventStartListening, 2*time.Second))

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Zero(t, session.QuestionCount)
	assert.Equal(t, types.StateWaitingResponse, session.CurrentState)
}

func TestStopInterviewSkipsRemarksAndPublish(t *testing.T) {
	m, store, publisher := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateWaitingResponse, 3)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)
	m.StopInterview(context.Background(), "sess-1")

	require.True(t, em.waitFor(t, EventInterviewCompleted, 2*time.Second))
	assert.Zero(t, em.count(EventAIMessage))
	assert.Zero(t, publisher.published())

	session, err := store.GetSession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, session.CurrentState)
}

func TestPlaybackFinishedUnblocksSpeech(t *testing.T) {
	m, store, _ := newTestManager(&stubSTT{})
	seedSession(t, store, types.StateCreated, 0)

	em := &recordingEmitter{}
	m.Attach("sess-1", "sock-1", em)

	// 持续发送播放确认，模拟正常响应的客户端
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.PlaybackFinished("sess-1")
			}
		}
	}()
	defer close(done)

	m.StartInterview(context.Background(), "sess-1")
	require.True(t, em.waitFor(t, EventStartListening, 2*time.Second))
}

func TestPlaybackFinishedUnknownSession(t *testing.T) {
	m, _, _ := newTestManager(&stubSTT{})
	// 未绑定的会话不应panic
	m.PlaybackFinished("missing")
}

func TestAttachDetachLifecycle(t *testing.T) {
	m, _, _ := newTestManager(&stubSTT{})

	m.Attach("sess-1", "sock-1", &recordingEmitter{})
	m.Attach("sess-2", "sock-2", &recordingEmitter{})
	assert.Equal(t, 2, m.ActiveSessions())

	// 同一会话重连替换旧绑定
	m.Attach("sess-1", "sock-3", &recordingEmitter{})
	assert.Equal(t, 2, m.ActiveSessions())

	// 旧socket已失效，detach无效果
	m.DetachSocket("sock-1")
	assert.Equal(t, 2, m.ActiveSessions())

	m.DetachSocket("sock-3")
	assert.Equal(t, 1, m.ActiveSessions())
	m.DetachSocket("sock-2")
	assert.Zero(t, m.ActiveSessions())
}

func TestAttachSameSocketToNewSessionReleasesOld(t *testing.T) {
	m, _, _ := newTestManager(&stubSTT{})

	m.Attach("sess-1", "sock-1", &recordingEmitter{})
	require.Equal(t, 1, m.ActiveSessions())

	// 同一连接换绑到新会话，旧会话运行态不能残留
	m.Attach("sess-2", "sock-1", &recordingEmitter{})
	assert.Equal(t, 1, m.ActiveSessions())

	// 旧会话已无运行态，播放确认静默丢弃
	m.PlaybackFinished("sess-1")

	m.DetachSocket("sock-1")
	assert.Zero(t, m.ActiveSessions())
}
