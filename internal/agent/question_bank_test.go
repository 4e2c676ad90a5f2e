package agent

import (
	"testing"

	"ai-interviewer-go/internal/types"

	"github.com/stretchr/testify/assert"
)

func turnsWithScores(scores ...float64) []types.Turn {
	turns := make([]types.Turn, len(scores))
	for i, s := range scores {
		turns[i] = types.Turn{Score: s}
	}
	return turns
}

func TestDetermineDifficultyFromResume(t *testing.T) {
	// 初学者画像
	beginner := types.CandidateProfile{
		ExperienceLevel: types.LevelBeginner,
		Skills:          []string{"Excel"},
	}
	assert.Equal(t, types.LevelBeginner, determineDifficulty(beginner, nil))

	// 技能少于两项也按初级处理
	sparse := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel"},
	}
	assert.Equal(t, types.LevelBeginner, determineDifficulty(sparse, nil))

	// VBA技能触发高级档位
	vba := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel", "VBA"},
	}
	assert.Equal(t, types.LevelAdvanced, determineDifficulty(vba, nil))

	// 普通中级画像
	mid := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel", "Pivot Tables"},
	}
	assert.Equal(t, types.LevelIntermediate, determineDifficulty(mid, nil))
}

func TestDetermineDifficultyAdjustsOnPerformance(t *testing.T) {
	mid := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel", "Pivot Tables"},
	}

	// 高分升档
	assert.Equal(t, types.LevelAdvanced, determineDifficulty(mid, turnsWithScores(9, 9)))

	// 低分降档
	assert.Equal(t, types.LevelBeginner, determineDifficulty(mid, turnsWithScores(2, 3)))

	// 只答了一题不调整
	assert.Equal(t, types.LevelIntermediate, determineDifficulty(mid, turnsWithScores(9)))

	// 初级候选人高分只升到中级
	beginner := types.CandidateProfile{
		ExperienceLevel: types.LevelBeginner,
		Skills:          []string{"Excel"},
	}
	assert.Equal(t, types.LevelIntermediate, determineDifficulty(beginner, turnsWithScores(9, 9)))
}

func TestSelectQuestionRotation(t *testing.T) {
	mid := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel", "Pivot Tables"},
	}

	questions := QuestionsForLevel(types.LevelIntermediate)

	// 第一题取题库首题
	assert.Equal(t, questions[0], SelectQuestion(mid, nil))

	// 答题数推进轮转位置，分数居中时不触发档位切换
	history := turnsWithScores(5, 6, 5)
	assert.Equal(t, questions[3], SelectQuestion(mid, history))
}

func TestSelectQuestionRecentPerformanceOverride(t *testing.T) {
	mid := types.CandidateProfile{
		ExperienceLevel: types.LevelIntermediate,
		Skills:          []string{"Excel", "Pivot Tables"},
	}

	// 最近两题低分，临时换到初级题
	lowHistory := turnsWithScores(6, 2, 2)
	beginner := QuestionsForLevel(types.LevelBeginner)
	assert.Equal(t, beginner[3], SelectQuestion(mid, lowHistory))

	// 最近两题高分但整体未达升档线，临时换到高级题
	highHistory := turnsWithScores(5, 9, 9)
	advanced := QuestionsForLevel(types.LevelAdvanced)
	assert.Equal(t, advanced[3], SelectQuestion(mid, highHistory))
}

func TestQuestionsForLevelFallback(t *testing.T) {
	// 未知档位回落到中级题库
	assert.Equal(t, QuestionsForLevel(types.LevelIntermediate), QuestionsForLevel(types.ExperienceLevel("expert")))
}

func TestQuestionBankShape(t *testing.T) {
	for _, level := range []types.ExperienceLevel{types.LevelBeginner, types.LevelIntermediate, types.LevelAdvanced} {
		assert.Len(t, QuestionsForLevel(level), 8, "level %s", level)
	}
}
