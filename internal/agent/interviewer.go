package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"ai-interviewer-go/internal/config"
	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/types"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Interviewer 面试官智能体，负责出题、评分和串场话术。
// LLM不可用时评分自动降级为关键词启发式。
type Interviewer struct {
	llmModel    model.ChatModel
	evalTimeout time.Duration
	maxRetries  int
	retryWait   time.Duration
	// disableLLM 强制走兜底评分，调试用
	disableLLM bool
}

// InterviewerOption 面试官配置选项
type InterviewerOption func(*Interviewer)

// WithEvalTimeout 设置单次评估超时
func WithEvalTimeout(d time.Duration) InterviewerOption {
	return func(i *Interviewer) {
		i.evalTimeout = d
	}
}

// WithMaxRetries 设置评估失败的重试次数
func WithMaxRetries(n int) InterviewerOption {
	return func(i *Interviewer) {
		i.maxRetries = n
	}
}

// WithDisabledLLM 强制使用兜底评分
func WithDisabledLLM(disabled bool) InterviewerOption {
	return func(i *Interviewer) {
		i.disableLLM = disabled
	}
}

// NewInterviewer 创建面试官实例，llmModel可为nil（评分全部走兜底路径）
func NewInterviewer(llmModel model.ChatModel, options ...InterviewerOption) *Interviewer {
	i := &Interviewer{
		llmModel:    llmModel,
		evalTimeout: 30 * time.Second,
		maxRetries:  2,
		retryWait:   2 * time.Second,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// NewInterviewerFromConfig 按配置创建面试官实例
func NewInterviewerFromConfig(llmModel model.ChatModel, cfg *config.EvaluatorConfig) *Interviewer {
	i := NewInterviewer(llmModel)
	if cfg == nil {
		return i
	}
	i.evalTimeout = config.GetDuration(cfg.EvalTimeout, 30*time.Second)
	if cfg.MaxRetries > 0 {
		i.maxRetries = cfg.MaxRetries
	}
	if cfg.RetryWaitSecs > 0 {
		i.retryWait = time.Duration(cfg.RetryWaitSecs) * time.Second
	}
	i.disableLLM = cfg.DisableLLMPath
	return i
}

// GenerateIntroduction 生成开场白
func (i *Interviewer) GenerateIntroduction(candidate types.CandidateProfile) string {
	skillsList := "basic Excel operations"
	if len(candidate.Skills) > 0 {
		top := candidate.Skills
		if len(top) > 3 {
			top = top[:3]
		}
		skillsList = strings.Join(top, ", ")
	}

	return fmt.Sprintf(`Namaste %s! Welcome to your comprehensive Excel skills assessment.

I'm your AI interviewer, and I'll be conducting a thorough evaluation of your Excel knowledge and practical experience. This interview will take approximately 12 to 15 minutes and consists of 7 to 8 detailed questions.

Based on your resume analysis, I can see you have experience with %s, and your experience level appears to be %s.

Here's how this professional interview works:

1. I'll ask you detailed questions about Excel concepts and real-world scenarios
2. Please provide comprehensive answers with specific examples from your experience
3. Take your time - there are no time limits. Speak naturally and I'll wait for you to complete your thoughts
4. I'll automatically detect when you've finished speaking (after 3 seconds of silence)
5. Your responses will be evaluated on technical accuracy, practical knowledge, communication clarity, and completeness
6. After each question, you'll see your scores update in real-time
7. At the end, you'll receive a detailed PDF report with comprehensive feedback

Important guidelines:
- Be honest - if you don't know something, please say so. Honesty is valued over guessing
- Provide specific examples from your work experience whenever possible
- Explain your thought process step-by-step
- Feel free to ask for clarification if any question is unclear

The evaluation is strict and follows professional standards. Scores range from 0 to 10, where even experienced professionals typically score between 6-8 on average.

Are you ready to begin? Let's start with our first question.`, candidate.Name, skillsList, candidate.ExperienceLevel)
}

// NextQuestion 根据候选人画像和答题历史选出下一题
func (i *Interviewer) NextQuestion(candidate types.CandidateProfile, history []types.Turn) string {
	return SelectQuestion(candidate, history)
}

// EvaluateAnswer 评估一次回答。优先走LLM，失败或未配置时回落到
// 关键词启发式，保证任何情况下都返回可用的评分。
func (i *Interviewer) EvaluateAnswer(ctx context.Context, question, answer string, transcriptionConfidence float64) types.Evaluation {
	if i.llmModel == nil || i.disableLLM {
		return FallbackEvaluation(question, answer)
	}

	var lastErr error
	for attempt := 0; attempt <= i.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return FallbackEvaluation(question, answer)
			case <-time.After(i.retryWait):
			}
		}

		eval, err := i.evaluateWithLLM(ctx, question, answer, transcriptionConfidence)
		if err == nil {
			return eval
		}
		lastErr = err
		logger.Warn().Err(err).Int("attempt", attempt+1).Msg("LLM评估失败")
	}

	logger.Error().Err(lastErr).Msg("LLM评估重试耗尽, 降级为兜底评分")
	return FallbackEvaluation(question, answer)
}

// jsonObjectPattern 从LLM回复中提取首个JSON对象
var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

func (i *Interviewer) evaluateWithLLM(ctx context.Context, question, answer string, transcriptionConfidence float64) (types.Evaluation, error) {
	evalCtx, cancel := context.WithTimeout(ctx, i.evalTimeout)
	defer cancel()

	prompt := buildEvaluationPrompt(question, answer, transcriptionConfidence)

	resp, err := i.llmModel.Generate(evalCtx, []*schema.Message{
		schema.UserMessage(prompt),
	})
	if err != nil {
		return types.Evaluation{}, fmt.Errorf("调用LLM失败: %w", err)
	}

	jsonText := jsonObjectPattern.FindString(resp.Content)
	if jsonText == "" {
		return types.Evaluation{}, fmt.Errorf("LLM回复中未找到JSON: %s", truncate(resp.Content, 200))
	}

	var eval types.Evaluation
	if err := json.Unmarshal([]byte(jsonText), &eval); err != nil {
		return types.Evaluation{}, fmt.Errorf("解析评估JSON失败: %w", err)
	}

	eval.Clamp()

	// 转写质量差时扣1分并在反馈中注明
	if transcriptionConfidence < 0.5 {
		eval.Score = eval.Score - 1
		if eval.Score < 0 {
			eval.Score = 0
		}
		eval.Feedback += fmt.Sprintf(" Note: Audio quality was poor (confidence: %.2f), which may have affected transcription accuracy.", transcriptionConfidence)
	}

	return eval, nil
}

func buildEvaluationPrompt(question, answer string, transcriptionConfidence float64) string {
	return fmt.Sprintf(`You are a senior Excel expert conducting a professional skills assessment. Evaluate this candidate's response with strict professional standards.

QUESTION: %s

CANDIDATE'S ANSWER: %s

TRANSCRIPTION CONFIDENCE: %.2f (1.0 = perfect, 0.1 = poor audio quality)

EVALUATION CRITERIA:
1. Technical Accuracy (40%%): Is the information technically correct and complete?
2. Practical Knowledge (30%%): Does the candidate show real-world understanding and experience?
3. Communication Clarity (20%%): Is the explanation clear, structured, and professional?
4. Completeness (10%%): Does the answer fully address all aspects of the question?

STRICT SCORING GUIDELINES:
- 9-10: Exceptional answer with perfect technical accuracy, excellent examples, and comprehensive coverage
- 7-8: Very good answer with minor gaps, good technical knowledge, and relevant examples
- 5-6: Adequate answer but missing key points, some inaccuracies, or lacks depth
- 3-4: Basic understanding shown but significant gaps, errors, or very incomplete
- 1-2: Poor answer with major inaccuracies, very incomplete, or shows minimal understanding
- 0: No relevant answer, "I don't know", completely incorrect, or unintelligible

SPECIAL SCORING RULES:
- If candidate says "I don't know" or "I'm not sure" → Maximum score 1
- If answer is vague without specifics → Maximum score 4
- If candidate shows uncertainty with "I think", "maybe", "probably" → Reduce score by 1-2 points
- If answer contains factual errors → Reduce score significantly
- If transcription confidence is low (< 0.5) → Consider audio quality in evaluation
- Reward specific examples, step-by-step explanations, and practical insights
- Penalize generic answers without real-world context

Provide your evaluation in this exact JSON format:
{
  "score": 7.5,
  "technical": 8.0,
  "practical": 7.0,
  "communication": 8.0,
  "completeness": 7.0,
  "feedback": "Detailed professional feedback explaining the score and what was good/missing",
  "strengths": ["Specific strength 1", "Specific strength 2"],
  "improvements": ["Specific improvement needed 1", "Specific improvement needed 2"],
  "key_missing": ["Important concept not mentioned", "Key detail overlooked"],
  "confidence_adjustment": "How transcription confidence affected the evaluation"
}`, question, answer, transcriptionConfidence)
}

// dontKnowPhrases 明确表示不会的说法，命中即判0分
var dontKnowPhrases = []string{
	"i don't know",
	"i'm not sure",
	"i'm not aware",
	"no idea",
	"not familiar",
	"don't have experience",
	"never used",
	"not sure",
	"i have no idea",
}

// UncertaintyPhrases 犹豫措辞，兜底评分命中扣2分，转写置信度估计也参照这张表
var UncertaintyPhrases = []string{
	"i think",
	"maybe",
	"probably",
	"i guess",
	"not sure",
	"might be",
}

// ExcelKeywords 兜底评分与转写置信度估计共用的Excel术语表
var ExcelKeywords = []string{
	"formula", "function", "cell", "range", "pivot",
	"vlookup", "chart", "data", "worksheet", "workbook",
	"sum", "count", "if", "index", "match",
	"filter", "conditional", "formatting", "macro", "vba",
}

// FallbackEvaluation LLM不可用时的关键词启发式评分
func FallbackEvaluation(question, answer string) types.Evaluation {
	answerLower := strings.ToLower(strings.TrimSpace(answer))

	isDontKnow := false
	for _, phrase := range dontKnowPhrases {
		if strings.Contains(answerLower, phrase) {
			isDontKnow = true
			break
		}
	}

	if isDontKnow || len(answerLower) < 10 {
		return types.Evaluation{
			Score:         0,
			Technical:     0,
			Practical:     0,
			Communication: 1,
			Completeness:  0,
			Feedback:      "The candidate indicated they don't know the answer or provided insufficient information. While honesty is appreciated, this shows a significant knowledge gap in this Excel concept.",
			Strengths:     []string{"Honest about knowledge limitations"},
			Improvements: []string{
				"Study this Excel concept thoroughly",
				"Practice with hands-on examples",
				"Gain practical experience",
			},
			KeyMissing: []string{
				"Complete understanding of the concept",
				"Practical examples",
				"Technical implementation details",
			},
			ConfidenceAdjustment: "N/A - Clear response indicating lack of knowledge",
		}
	}

	// 起评1分，按术语命中和篇幅结构加分
	score := 1.0

	keywordCount := 0
	for _, keyword := range ExcelKeywords {
		if strings.Contains(answerLower, keyword) {
			keywordCount++
		}
	}
	bonus := float64(keywordCount) * 0.5
	if bonus > 3 {
		bonus = 3
	}
	score += bonus

	if len(answer) > 50 {
		score++
	}
	if len(answer) > 150 {
		score++
	}
	if strings.Contains(answerLower, "example") || strings.Contains(answerLower, "for instance") {
		score++
	}

	for _, phrase := range UncertaintyPhrases {
		if strings.Contains(answerLower, phrase) {
			score -= 2
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	var feedback string
	switch {
	case score >= 6:
		feedback = "Your response shows good understanding. Good foundation, but could be enhanced with more depth and specific examples."
	case score >= 3:
		feedback = "Your response shows basic understanding. To improve, provide more specific technical details, step-by-step explanations, and real-world examples."
	default:
		feedback = "Your response shows limited understanding. To improve, provide more specific technical details, step-by-step explanations, and real-world examples."
	}

	strengths := []string{"Attempted to answer"}
	improvements := []string{
		"Add more technical detail",
		"Provide specific examples",
		"Explain step-by-step processes",
	}
	if score >= 6 {
		strengths = []string{"Relevant content", "Clear communication"}
		improvements = []string{"Include more depth", "Add practical examples"}
	}

	practical := score - 1
	if practical < 0 {
		practical = 0
	}
	communication := score + 1
	if communication > 10 {
		communication = 10
	}
	completeness := score - 1
	if completeness < 0 {
		completeness = 0
	}

	return types.Evaluation{
		Score:         score,
		Technical:     score,
		Practical:     practical,
		Communication: communication,
		Completeness:  completeness,
		Feedback:      feedback,
		Strengths:     strengths,
		Improvements:  improvements,
		KeyMissing: []string{
			"More technical specifics",
			"Practical examples",
			"Complete process explanation",
		},
		ConfidenceAdjustment: "Fallback evaluation used due to AI service unavailability",
	}
}

// GenerateClosingRemarks 按综合得分生成结束语
func (i *Interviewer) GenerateClosingRemarks(scores types.OverallScores, questionCount int) string {
	overall := scores.Overall
	var performance, feedback, nextSteps string

	switch {
	case overall >= 8.5:
		performance = "exceptional"
		feedback = "You have demonstrated outstanding Excel expertise with comprehensive knowledge and excellent practical understanding. Your responses showed deep technical knowledge and real-world experience."
		nextSteps = "Consider pursuing advanced Excel certifications or specializing in areas like Power BI, advanced analytics, or Excel training roles."
	case overall >= 7:
		performance = "very good"
		feedback = "You have shown strong Excel knowledge with good technical understanding and practical experience. Your responses demonstrated solid competency in most areas."
		nextSteps = "Focus on the specific improvement areas mentioned in your report to reach expert level. Consider advanced Excel courses for specialized topics."
	case overall >= 5:
		performance = "satisfactory"
		feedback = "You have a decent foundation in Excel with room for significant improvement. Your responses showed basic understanding but lacked depth in several areas."
		nextSteps = "I recommend structured Excel training focusing on the gaps identified in your report. Practice with real-world scenarios and hands-on exercises."
	case overall >= 3:
		performance = "needs improvement"
		feedback = "Your Excel knowledge shows significant gaps that need to be addressed. While you demonstrated some basic understanding, many fundamental concepts require strengthening."
		nextSteps = "Consider taking a comprehensive Excel course starting from basics. Focus on hands-on practice and building practical experience with real datasets."
	default:
		performance = "requires substantial development"
		feedback = "The assessment revealed major gaps in Excel knowledge. This indicates a need for comprehensive training and practice."
		nextSteps = "I strongly recommend starting with beginner-level Excel courses and dedicating significant time to hands-on practice before considering Excel-intensive roles."
	}

	return fmt.Sprintf(`Thank you for completing this comprehensive Excel skills assessment!

ASSESSMENT SUMMARY:
- Overall Performance: %s
- Final Score: %.1f out of 10
- Questions Completed: %d
- Assessment Duration: Professional standard evaluation

PERFORMANCE ANALYSIS:
%s

NEXT STEPS:
%s

Your detailed report is now being generated and will include:
- Complete question-by-question analysis with scores
- Detailed technical feedback for each response
- Specific skill gaps and improvement recommendations
- Personalized learning path based on your performance
- Industry benchmarking and career guidance
- Resources for continued Excel skill development

This assessment follows professional industry standards. The scoring is intentionally strict to provide accurate skill evaluation for career development and hiring decisions.

Your report will be available for download in a moment. Thank you for your honest responses and professional participation in this assessment.

Best of luck with your Excel skill development journey!`,
		strings.ToUpper(performance), overall, questionCount, feedback, nextSteps)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
