package parser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ai-interviewer-go/internal/constants"
	"ai-interviewer-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResume = `Priya Sharma
Senior Data Analyst
priya.sharma@example.com
+91 987 654 3210

SUMMARY
Data analyst with 6 years of experience building reports and dashboards.

SKILLS
Advanced Excel, VLOOKUP, Pivot Tables, Power Query, VBA macros, conditional formatting

EXPERIENCE
2019 - Present: Senior Analyst at Acme Corp
Built automated monthly dashboards with Power Query and VBA.
`

func TestExtractInformation(t *testing.T) {
	profile := ExtractInformation(sampleResume)

	assert.Equal(t, "Priya Sharma", profile.Name)
	assert.Equal(t, "priya.sharma@example.com", profile.Email)
	assert.NotEmpty(t, profile.Phone)
	assert.Contains(t, profile.Skills, "vlookup")
	assert.Contains(t, profile.Skills, "power query")
	assert.Contains(t, profile.Skills, "vba")
	assert.Equal(t, types.LevelAdvanced, profile.ExperienceLevel)
}

func TestExtractNameSkipsNonNameLines(t *testing.T) {
	text := `priya.sharma@example.com
https://linkedin.com/in/priya
123 Main Street
Priya Sharma
Analyst`
	profile := ExtractInformation(text)
	assert.Equal(t, "Priya Sharma", profile.Name)
}

func TestExtractNameFallsBackToEmailPrefix(t *testing.T) {
	text := `12345
https://example.com
contact: rajesh.kumar@example.com`
	profile := ExtractInformation(text)
	assert.Equal(t, "rajesh.kumar", profile.Name)
}

func TestDetermineExperienceLevel(t *testing.T) {
	// 无任何经验线索
	assert.Equal(t, types.LevelBeginner, determineExperienceLevel("I know basic spreadsheets"))

	// 5年经验 = 5分, 中级
	assert.Equal(t, types.LevelIntermediate, determineExperienceLevel("5 years of office work"))

	// 年限 + 高级技能 + 职级词
	advanced := "8 years experience as senior analyst using vba and power query"
	assert.Equal(t, types.LevelAdvanced, determineExperienceLevel(advanced))

	// 年限上限为10
	assert.Equal(t, types.LevelAdvanced, determineExperienceLevel("25 years of work"))
}

func TestExtractSkillsDeduplicates(t *testing.T) {
	text := "Excel excel EXCEL vlookup VLOOKUP"
	skills := extractExcelSkills(text)

	count := 0
	for _, s := range skills {
		if s == "excel" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Contains(t, skills, "vlookup")
}

func TestRawTextTruncation(t *testing.T) {
	long := "Priya Sharma\n" + strings.Repeat("excel data analysis experience ", 100)
	profile := ExtractInformation(long)
	assert.LessOrEqual(t, len(profile.RawText), 1003)
	assert.True(t, strings.HasSuffix(profile.RawText, "..."))
}

// failingExtractor 总是失败的文本提取器
type failingExtractor struct{}

func (f *failingExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return "", fmt.Errorf("corrupt document")
}

func TestExtractProfileFallbackOnError(t *testing.T) {
	extractor := NewResumeExtractor(&failingExtractor{})
	profile := extractor.ExtractProfile(context.Background(), []byte("junk"), constants.MimePDF)

	require.NotNil(t, profile)
	assert.Equal(t, "Candidate", profile.Name)
	assert.Equal(t, []string{"Basic Excel"}, profile.Skills)
	assert.Equal(t, types.LevelBeginner, profile.ExperienceLevel)
	assert.Equal(t, "corrupt document", profile.ParsingError)
}

// staticExtractor 返回固定文本的提取器
type staticExtractor struct {
	text string
}

func (s *staticExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return s.text, nil
}

func TestExtractProfileFromText(t *testing.T) {
	extractor := NewResumeExtractor(&staticExtractor{text: sampleResume})
	profile := extractor.ExtractProfile(context.Background(), []byte("pdf-bytes"), constants.MimePDF)

	assert.Equal(t, "Priya Sharma", profile.Name)
	assert.Empty(t, profile.ParsingError)
}
