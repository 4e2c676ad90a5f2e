package agent

import (
	"strings"

	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/types"
)

// questionBank 按难度档位组织的固定题库，每档8题。
// 题目顺序即出题顺序，按已答题数取模轮转。
var questionBank = map[types.ExperienceLevel][]string{
	types.LevelBeginner: {
		"Can you explain what Microsoft Excel is and describe three main ways it's used in business environments?",
		"How would you create a SUM formula to add numbers in cells A1 through A10? Please walk me through each step.",
		"What's the difference between a relative cell reference like A1 and an absolute reference like $A$1? When would you use each type?",
		"How do you format cells to display numbers as Indian currency? Describe the complete process.",
		"Can you explain how to create a basic column chart from data in Excel? What are the key steps?",
		"How would you sort a list of employee names alphabetically in Excel?",
		"What is a cell range and how do you select a range like A1:C10?",
		"How do you freeze the first row in a worksheet so it stays visible when scrolling?",
	},
	types.LevelIntermediate: {
		"Explain how VLOOKUP works and give me a specific business example where you would use it.",
		"How would you create a pivot table to analyze sales data by region and product? Walk me through the process.",
		"What is conditional formatting and how would you use it to highlight cells with values above 10,000?",
		"How do you create an IF statement that checks if a value is greater than 100 and returns 'High' or 'Low'?",
		"Compare VLOOKUP and INDEX-MATCH functions. Which is better and why?",
		"How would you remove duplicate entries from a customer database in Excel?",
		"Explain data validation and how you would restrict a cell to only accept dates between today and next year.",
		"How do SUMIF and COUNTIF functions work? Give me practical examples of each.",
	},
	types.LevelAdvanced: {
		"How would you create a dynamic dashboard in Excel that updates automatically when new data is added?",
		"Explain array formulas and provide a specific example of when you've used one to solve a complex problem.",
		"How do you use Power Query to clean and transform data from multiple CSV files?",
		"Describe how you would create a VBA macro to automate a monthly report generation process.",
		"How would you efficiently analyze a dataset with 500,000 rows in Excel without performance issues?",
		"What advanced pivot table features have you used for complex data analysis?",
		"How do you create custom functions in Excel using VBA? Give me an example.",
		"Explain how you would use Excel for statistical analysis including regression and correlation.",
	},
}

// QuestionsForLevel 返回指定档位的题库，档位未知时回落到中级
func QuestionsForLevel(level types.ExperienceLevel) []string {
	if qs, ok := questionBank[level]; ok {
		return qs
	}
	return questionBank[types.LevelIntermediate]
}

// determineDifficulty 根据简历画像和实际表现确定当前难度档位。
// 先由简历定初始档位，答满两题后按全程均分逐级升降。
func determineDifficulty(candidate types.CandidateProfile, history []types.Turn) types.ExperienceLevel {
	difficulty := types.LevelIntermediate

	experienceLevel := strings.ToLower(string(candidate.ExperienceLevel))
	skills := make([]string, len(candidate.Skills))
	for i, s := range candidate.Skills {
		skills[i] = strings.ToLower(s)
	}

	// 简历确定初始档位
	if strings.Contains(experienceLevel, "beginner") || len(skills) < 2 {
		difficulty = types.LevelBeginner
	} else if strings.Contains(experienceLevel, "advanced") || hasAdvancedSkill(skills) {
		difficulty = types.LevelAdvanced
	}

	// 按实际表现逐级升降
	if len(history) >= 2 {
		var sum float64
		for _, turn := range history {
			sum += turn.Score
		}
		avgScore := sum / float64(len(history))

		if avgScore > constants.TierEscalateThreshold && difficulty != types.LevelAdvanced {
			if difficulty == types.LevelBeginner {
				difficulty = types.LevelIntermediate
			} else {
				difficulty = types.LevelAdvanced
			}
		} else if avgScore < constants.TierDeescalateThreshold && difficulty != types.LevelBeginner {
			if difficulty == types.LevelAdvanced {
				difficulty = types.LevelIntermediate
			} else {
				difficulty = types.LevelBeginner
			}
		}
	}

	return difficulty
}

func hasAdvancedSkill(skills []string) bool {
	for _, s := range skills {
		if strings.Contains(s, "vba") || strings.Contains(s, "macro") ||
			strings.Contains(s, "power") || strings.Contains(s, "advanced") {
			return true
		}
	}
	return false
}

// SelectQuestion 选出下一题。按已答题数在当前档位题库中轮转，
// 最近两题表现极端时临时换到初级或高级题库的同位置题目。
func SelectQuestion(candidate types.CandidateProfile, history []types.Turn) string {
	questionCount := len(history)
	difficulty := determineDifficulty(candidate, history)

	questions := QuestionsForLevel(difficulty)
	questionIndex := questionCount % len(questions)
	selected := questions[questionIndex]

	if len(history) > 0 {
		recent := history
		if len(recent) > 2 {
			recent = recent[len(recent)-2:]
		}
		var sum float64
		for _, turn := range recent {
			sum += turn.Score
		}
		avgRecent := sum / float64(len(recent))

		if avgRecent < constants.TierDeescalateThreshold && difficulty != types.LevelBeginner {
			beginner := questionBank[types.LevelBeginner]
			selected = beginner[questionIndex%len(beginner)]
		} else if avgRecent > constants.TierEscalateThreshold && difficulty != types.LevelAdvanced {
			advanced := questionBank[types.LevelAdvanced]
			selected = advanced[questionIndex%len(advanced)]
		}
	}

	return selected
}
