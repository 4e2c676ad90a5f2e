package report

import (
	"strings"
	"testing"
	"time"

	"ai-interviewer-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSession() *types.Session {
	now := time.Now()
	return &types.Session{
		SessionID: "sess-42",
		CandidateInfo: types.CandidateProfile{
			Name:            "Priya Sharma",
			Email:           "priya@example.com",
			ExperienceLevel: types.LevelIntermediate,
		},
		ConversationHistory: []types.Turn{
			{
				Question:  "Can you explain the difference between VLOOKUP and HLOOKUP?",
				Answer:    "VLOOKUP searches vertically in the first column while HLOOKUP searches horizontally in the first row.",
				Score:     7.5,
				Feedback:  "Good explanation with clear distinction between the two functions.",
				Timestamp: now.Add(-20 * time.Minute),
			},
			{
				Question:  "How do you create a pivot table?",
				Answer:    "Select the data range, insert pivot table, then drag fields into rows and values.",
				Score:     6.0,
				Timestamp: now.Add(-15 * time.Minute),
			},
		},
		CurrentState: types.StateCompleted,
		OverallScores: types.OverallScores{
			Technical:      6.8,
			Communication:  7.2,
			ProblemSolving: 6.5,
			Completeness:   6.0,
			Overall:        6.7,
		},
		QuestionCount: 2,
		StartTime:     now.Add(-25 * time.Minute),
		LastActivity:  now,
	}
}

func TestGeneratePDF(t *testing.T) {
	gen := NewGenerator()
	data, err := gen.Generate(sampleSession())

	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
	// 报告至少有正文页和建议页
	assert.Greater(t, len(data), 2000)
}

func TestGenerateNilSession(t *testing.T) {
	gen := NewGenerator()
	_, err := gen.Generate(nil)
	assert.Error(t, err)
}

func TestGenerateManyQuestionsPaginates(t *testing.T) {
	session := sampleSession()
	long := strings.Repeat("I would use structured references and dynamic array formulas. ", 10)
	for i := 0; i < 8; i++ {
		session.ConversationHistory = append(session.ConversationHistory, types.Turn{
			Question: "Describe a complex Excel workflow you have automated.",
			Answer:   long,
			Score:    5.5,
			Feedback: "Covers the main steps.",
		})
	}

	gen := NewGenerator()
	data, err := gen.Generate(session)
	require.NoError(t, err)
	assert.Greater(t, len(data), 4000)
}

func TestPerformanceLevel(t *testing.T) {
	assert.Equal(t, "Excellent", PerformanceLevel(9.0))
	assert.Equal(t, "Excellent", PerformanceLevel(8.5))
	assert.Equal(t, "Very Good", PerformanceLevel(7.8))
	assert.Equal(t, "Good", PerformanceLevel(6.5))
	assert.Equal(t, "Fair", PerformanceLevel(5.5))
	assert.Equal(t, "Needs Improvement", PerformanceLevel(4.2))
}

func TestOverallAssessmentBrackets(t *testing.T) {
	assert.Contains(t, OverallAssessment(9.0), "Exceptional")
	assert.Contains(t, OverallAssessment(7.5), "Strong Excel skills")
	assert.Contains(t, OverallAssessment(6.0), "Solid foundation")
	assert.Contains(t, OverallAssessment(3.0), "Basic Excel knowledge")
}

func TestRecommendationsPerDimension(t *testing.T) {
	// 全维度达标时只剩通用建议
	recs := Recommendations(types.OverallScores{
		Technical: 8, Communication: 8, ProblemSolving: 8, Completeness: 8,
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "Continuous Learning", recs[0].Title)

	// 三个维度都低于7
	recs = Recommendations(types.OverallScores{
		Technical: 5, Communication: 6, ProblemSolving: 4,
	})
	require.Len(t, recs, 4)
	assert.Equal(t, "Strengthen Technical Excel Skills", recs[0].Title)
	assert.Equal(t, "Improve Technical Communication", recs[1].Title)
	assert.Equal(t, "Enhance Problem-Solving Approach", recs[2].Title)
	assert.Equal(t, "Continuous Learning", recs[3].Title)
}
