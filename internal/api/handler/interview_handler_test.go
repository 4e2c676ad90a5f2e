package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"
	"testing"
	"time"

	"ai-interviewer-go/internal/agent"
	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/interview"
	"ai-interviewer-go/internal/parser"
	"ai-interviewer-go/internal/report"
	"ai-interviewer-go/internal/speech"
	"ai-interviewer-go/internal/storage"
	"ai-interviewer-go/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stubResumeText = `Priya Sharma
priya@example.com
SKILLS: Advanced Excel, VLOOKUP, Power Query, VBA
6 years of experience as senior analyst`

// stubTextExtractor 固定文本的提取器
type stubTextExtractor struct{}

func (stubTextExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return stubResumeText, nil
}

type silentTTS struct{}

func (silentTTS) Synthesize(ctx context.Context, text string, kind speech.SpeechKind) ([]byte, bool) {
	return speech.SilentWAV(0), false
}

// memoryObjects 进程内的简历与报告对象表
type memoryObjects struct {
	files map[string][]byte
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{files: make(map[string][]byte)}
}

func (m *memoryObjects) UploadResume(ctx context.Context, sessionID, fileExt string, reader io.Reader, fileSize int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	name := sessionID + "/resume" + fileExt
	m.files[name] = data
	return name, nil
}

func (m *memoryObjects) GetResume(ctx context.Context, objectName string) ([]byte, error) {
	data, ok := m.files[objectName]
	if !ok {
		return nil, storage.ErrRecordNotFound
	}
	return data, nil
}

func (m *memoryObjects) UploadReport(ctx context.Context, sessionID string, pdfBytes []byte) (string, error) {
	name := sessionID + "/report.pdf"
	m.files[name] = pdfBytes
	return name, nil
}

func (m *memoryObjects) GetReport(ctx context.Context, objectName string) ([]byte, error) {
	return m.GetResume(ctx, objectName)
}

func (m *memoryObjects) GetReportURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	return "http://minio.local/" + objectName, nil
}

type testHarness struct {
	engine  *server.Hertz
	store   *storage.Storage
	handler *InterviewHandler
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	store := &storage.Storage{Sessions: storage.NewMemoryStore()}
	manager := interview.NewManager(
		store.Sessions, nil, agent.NewInterviewer(nil),
		silentTTS{}, nil, &config.InterviewConfig{},
	)
	h := NewInterviewHandler(
		store,
		parser.NewResumeExtractor(stubTextExtractor{}),
		report.NewGenerator(),
		manager,
	)

	engine := server.New(server.WithHostPorts("127.0.0.1:0"))
	engine.GET("/health", h.Health)
	api := engine.Group("/api/v1")
	api.GET("/interview/start/:candidateEmail", h.StartSession)
	api.POST("/interview/upload-resume", h.UploadResume)
	api.GET("/session/:sessionId", h.GetSession)
	api.GET("/report/download/:sessionId", h.DownloadReport)
	api.GET("/hr/resume/:sessionId", h.DownloadResume)
	return &testHarness{engine: engine, store: store, handler: h}
}

func (th *testHarness) get(path string) *ut.ResponseRecorder {
	return ut.PerformRequest(th.engine.Engine, "GET", path, nil)
}

func TestHealth(t *testing.T) {
	th := newHarness(t)
	resp := th.get("/health")
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Contains(t, string(resp.Result().Body()), `"status":"ok"`)
}

func TestStartSessionCreatesPendingSession(t *testing.T) {
	th := newHarness(t)

	resp := th.get("/api/v1/interview/start/priya@example.com")
	require.Equal(t, 200, resp.Result().StatusCode())

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	require.NotEmpty(t, result["sessionId"])
	assert.Equal(t, "created", result["status"])

	session, err := th.store.Sessions.GetSession(context.Background(), result["sessionId"])
	require.NoError(t, err)
	assert.Equal(t, "priya@example.com", session.CandidateInfo.Email)
	assert.Equal(t, "priya", session.CandidateInfo.Name)
}

func TestStartSessionUsesCachedProfile(t *testing.T) {
	th := newHarness(t)
	require.NoError(t, th.store.Sessions.SaveCandidateProfile(context.Background(), "priya@example.com",
		&types.CandidateProfile{
			Name:            "Priya Sharma",
			Email:           "priya@example.com",
			Skills:          []string{"vlookup"},
			ExperienceLevel: types.LevelAdvanced,
		}))

	resp := th.get("/api/v1/interview/start/priya@example.com")
	require.Equal(t, 200, resp.Result().StatusCode())

	var result map[string]string
	require.NoError(t, json.Unmarshal(resp.Result().Body(), &result))
	session, err := th.store.Sessions.GetSession(context.Background(), result["sessionId"])
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", session.CandidateInfo.Name)
	assert.Equal(t, types.LevelAdvanced, session.CandidateInfo.ExperienceLevel)
}

func TestStartSessionInvalidEmail(t *testing.T) {
	th := newHarness(t)
	resp := th.get("/api/v1/interview/start/not-an-email")
	assert.Equal(t, 400, resp.Result().StatusCode())
}

func TestGetSessionNotFound(t *testing.T) {
	th := newHarness(t)
	resp := th.get("/api/v1/session/missing")
	assert.Equal(t, 404, resp.Result().StatusCode())
}

func seedHarnessSession(t *testing.T, th *testHarness, state types.SessionState) *types.Session {
	t.Helper()
	session := types.NewSession("sess-api", types.CandidateProfile{
		Name:            "Priya",
		Email:           "priya@example.com",
		ExperienceLevel: types.LevelIntermediate,
	})
	session.CurrentState = state
	require.NoError(t, th.store.Sessions.SaveSession(context.Background(), session))
	return session
}

func TestGetSessionSnapshot(t *testing.T) {
	th := newHarness(t)
	seedHarnessSession(t, th, types.StateWaitingResponse)

	resp := th.get("/api/v1/session/sess-api")
	require.Equal(t, 200, resp.Result().StatusCode())
	body := string(resp.Result().Body())
	assert.Contains(t, body, `"state":"waiting-response"`)
	assert.Contains(t, body, `"sessionId":"sess-api"`)
}

func multipartResume(t *testing.T, sessionID, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("sessionId", sessionID))
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadResumeExtractsProfile(t *testing.T) {
	th := newHarness(t)
	seedHarnessSession(t, th, types.StateCreated)

	body, contentType := multipartResume(t, "sess-api", "resume.pdf", []byte("%PDF-1.4 fake"))
	resp := ut.PerformRequest(th.engine.Engine, "POST", "/api/v1/interview/upload-resume",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Contains(t, string(resp.Result().Body()), "Priya Sharma")

	session, err := th.store.Sessions.GetSession(context.Background(), "sess-api")
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", session.CandidateInfo.Name)
	assert.Equal(t, types.LevelAdvanced, session.CandidateInfo.ExperienceLevel)
	assert.Contains(t, session.CandidateInfo.Skills, "vlookup")

	// 画像同步进了缓存
	profile, err := th.store.Sessions.GetCandidateProfile(context.Background(), "priya@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Priya Sharma", profile.Name)
}

func TestUploadResumeStoresOriginal(t *testing.T) {
	th := newHarness(t)
	th.handler.objects = newMemoryObjects()
	seedHarnessSession(t, th, types.StateCreated)

	body, contentType := multipartResume(t, "sess-api", "resume.pdf", []byte("%PDF-1.4 fake"))
	resp := ut.PerformRequest(th.engine.Engine, "POST", "/api/v1/interview/upload-resume",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, 200, resp.Result().StatusCode())

	session, err := th.store.Sessions.GetSession(context.Background(), "sess-api")
	require.NoError(t, err)
	assert.Equal(t, "sess-api/resume.pdf", session.ResumePath)
}

func TestDownloadResumeReturnsOriginal(t *testing.T) {
	th := newHarness(t)
	th.handler.objects = newMemoryObjects()
	seedHarnessSession(t, th, types.StateCreated)

	body, contentType := multipartResume(t, "sess-api", "resume.pdf", []byte("%PDF-1.4 fake"))
	resp := ut.PerformRequest(th.engine.Engine, "POST", "/api/v1/interview/upload-resume",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	require.Equal(t, 200, resp.Result().StatusCode())

	resp = th.get("/api/v1/hr/resume/sess-api")
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.Equal(t, "%PDF-1.4 fake", string(resp.Result().Body()))
	assert.Equal(t, "application/pdf", string(resp.Result().Header.ContentType()))
}

func TestDownloadResumeWithoutObjectStorage(t *testing.T) {
	th := newHarness(t)
	resp := th.get("/api/v1/hr/resume/sess-api")
	assert.Equal(t, 503, resp.Result().StatusCode())
}

func TestDownloadResumeNotUploaded(t *testing.T) {
	th := newHarness(t)
	th.handler.objects = newMemoryObjects()
	seedHarnessSession(t, th, types.StateCreated)

	resp := th.get("/api/v1/hr/resume/sess-api")
	assert.Equal(t, 404, resp.Result().StatusCode())
}

func TestUploadResumeRejectsUnsupportedType(t *testing.T) {
	th := newHarness(t)
	seedHarnessSession(t, th, types.StateCreated)

	body, contentType := multipartResume(t, "sess-api", "resume.txt", []byte("plain text"))
	resp := ut.PerformRequest(th.engine.Engine, "POST", "/api/v1/interview/upload-resume",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, 400, resp.Result().StatusCode())
}

func TestUploadResumeAfterStartRejected(t *testing.T) {
	th := newHarness(t)
	seedHarnessSession(t, th, types.StateWaitingResponse)

	body, contentType := multipartResume(t, "sess-api", "resume.pdf", []byte("%PDF"))
	resp := ut.PerformRequest(th.engine.Engine, "POST", "/api/v1/interview/upload-resume",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
	assert.Equal(t, 409, resp.Result().StatusCode())
}

func TestDownloadReportRendersLiveSession(t *testing.T) {
	th := newHarness(t)
	session := seedHarnessSession(t, th, types.StateCompleted)
	session.AppendTurn(types.Turn{
		Question:   "What is a pivot table?",
		Answer:     "A tool to summarize data.",
		Score:      6,
		Evaluation: types.Evaluation{Score: 6, Technical: 6, Practical: 6, Communication: 6, Completeness: 6},
	})
	session.RecomputeOverallScores()
	require.NoError(t, th.store.Sessions.SaveSession(context.Background(), session))

	resp := th.get("/api/v1/report/download/sess-api")
	require.Equal(t, 200, resp.Result().StatusCode())
	assert.True(t, strings.HasPrefix(string(resp.Result().Body()), "%PDF"))
}

func TestResumeMimeType(t *testing.T) {
	mime, err := resumeMimeType("cv.PDF")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", mime)

	mime, err = resumeMimeType("cv.docx")
	require.NoError(t, err)
	assert.Contains(t, mime, "wordprocessingml")

	_, err = resumeMimeType("cv.exe")
	assert.Error(t, err)
}
