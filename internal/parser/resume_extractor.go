package parser

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"ai-interviewer-go/internal/logger"
	"ai-interviewer-go/internal/types"
)

// excelSkills 简历中识别的Excel技能词表
var excelSkills = []string{
	"excel",
	"vlookup",
	"pivot table",
	"pivot tables",
	"macro",
	"macros",
	"vba",
	"index match",
	"sumif",
	"countif",
	"conditional formatting",
	"data validation",
	"charts",
	"graphs",
	"formulas",
	"functions",
	"spreadsheet",
	"data analysis",
	"power query",
	"power pivot",
	"dashboard",
	"xlookup",
	"power bi",
}

// advancedSkillMarkers 经验评分中的高级技能标记，每项加2分
var advancedSkillMarkers = []string{"vba", "macro", "power query", "power pivot", "advanced excel"}

// seniorTitleMarkers 经验评分中的职级标记，每项加1分
var seniorTitleMarkers = []string{"senior", "lead", "manager", "director", "analyst", "specialist"}

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[-.\s]?)?\d{3}[-.\s]?\d{3}[-.\s]?\d{4}`)
	yearsPattern = regexp.MustCompile(`(\d+)\s*(?:years?|yrs?)`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// ResumeExtractor 从简历文件中提取候选人画像
type ResumeExtractor struct {
	textExtractor TextExtractor
}

// NewResumeExtractor 创建简历画像提取器
func NewResumeExtractor(textExtractor TextExtractor) *ResumeExtractor {
	return &ResumeExtractor{textExtractor: textExtractor}
}

// ExtractProfile 解析简历并提取候选人画像。
// 文本提取失败时返回最小可用画像并在ParsingError中记录原因，
// 面试流程不因简历解析失败而中断。
func (r *ResumeExtractor) ExtractProfile(ctx context.Context, data []byte, mimeType string) *types.CandidateProfile {
	text, err := r.textExtractor.ExtractText(ctx, data, mimeType)
	if err != nil {
		logger.Warn().Err(err).Str("mime_type", mimeType).Msg("简历文本提取失败, 返回兜底画像")
		return &types.CandidateProfile{
			Name:            "Candidate",
			Skills:          []string{"Basic Excel"},
			ExperienceLevel: types.LevelBeginner,
			RawText:         "Failed to extract text from resume",
			ParsingError:    err.Error(),
		}
	}

	if len(strings.TrimSpace(text)) < 10 {
		logger.Warn().Msg("简历文本过短, 解析结果可能不完整")
	}

	return ExtractInformation(text)
}

// ExtractInformation 从纯文本中提取候选人画像
func ExtractInformation(text string) *types.CandidateProfile {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	profile := &types.CandidateProfile{
		Name:            extractName(lines),
		Email:           emailPattern.FindString(text),
		Phone:           phonePattern.FindString(text),
		Skills:          extractExcelSkills(text),
		ExperienceLevel: determineExperienceLevel(text),
		RawText:         truncateRawText(text),
	}

	// 名字没提取到但有邮箱时，用邮箱前缀顶替
	if profile.Name == "Candidate" && profile.Email != "" {
		if at := strings.Index(profile.Email, "@"); at > 0 {
			profile.Name = profile.Email[:at]
		}
	}

	return profile
}

// extractName 名字通常在前几行，跳过像邮箱、链接和编号的行
func extractName(lines []string) string {
	limit := len(lines)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		line := lines[i]
		if strings.Contains(line, "@") || strings.Contains(line, "http") {
			continue
		}
		if len(line) <= 2 || len(line) >= 50 {
			continue
		}
		if line[0] >= '0' && line[0] <= '9' {
			continue
		}
		if namePattern.MatchString(line) {
			return line
		}
	}
	return "Candidate"
}

func extractExcelSkills(text string) []string {
	lowerText := strings.ToLower(text)
	seen := make(map[string]bool)
	var found []string
	for _, skill := range excelSkills {
		if strings.Contains(lowerText, skill) && !seen[skill] {
			seen[skill] = true
			found = append(found, skill)
		}
	}
	return found
}

// determineExperienceLevel 按年限、高级技能和职级关键词累计经验分:
// 最大年限(上限10) + 高级技能×2 + 职级词×1，>=8为高级，>=4为中级。
func determineExperienceLevel(text string) types.ExperienceLevel {
	lowerText := strings.ToLower(text)
	experienceScore := 0

	matches := yearsPattern.FindAllStringSubmatch(lowerText, -1)
	maxYears := 0
	for _, m := range matches {
		if years, err := strconv.Atoi(m[1]); err == nil && years > maxYears {
			maxYears = years
		}
	}
	if maxYears > 10 {
		maxYears = 10
	}
	experienceScore += maxYears

	for _, skill := range advancedSkillMarkers {
		if strings.Contains(lowerText, skill) {
			experienceScore += 2
		}
	}

	for _, title := range seniorTitleMarkers {
		if strings.Contains(lowerText, title) {
			experienceScore++
		}
	}

	switch {
	case experienceScore >= 8:
		return types.LevelAdvanced
	case experienceScore >= 4:
		return types.LevelIntermediate
	default:
		return types.LevelBeginner
	}
}

func truncateRawText(text string) string {
	if len(text) > 1000 {
		return text[:1000] + "..."
	}
	return text
}
