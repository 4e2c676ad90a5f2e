package report

import (
	"bytes"
	"fmt"
	"time"

	"ai-interviewer-go/internal/types"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageMargin   = 15.0
	contentWidth = 180.0
	barWidth     = 120.0
)

// Generator 生成面试评估PDF报告
type Generator struct{}

// NewGenerator 创建报告生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate 根据会话生成完整的评估报告PDF
func (g *Generator) Generate(session *types.Session) ([]byte, error) {
	if session == nil {
		return nil, fmt.Errorf("会话不能为空")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(156, 163, 175)
		pdf.CellFormat(contentWidth/2, 5,
			fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "L", false, 0, "")
		pdf.CellFormat(contentWidth/2, 5,
			"Generated by Excel Skills Assessment System", "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	g.writeHeader(pdf, session)
	g.writeExecutiveSummary(pdf, session)
	g.writeScoreBreakdown(pdf, session)
	g.writeQuestionAnalysis(pdf, session)
	g.writeRecommendations(pdf, session)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("渲染PDF失败: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeHeader(pdf *gofpdf.Fpdf, session *types.Session) {
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(contentWidth, 12, "Excel Skills Assessment Report", "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(102, 102, 102)
	pdf.CellFormat(contentWidth, 6, "Generated on: "+time.Now().Format("January 2, 2006"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6, "Candidate: "+session.CandidateInfo.Name, "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6, "Session ID: "+session.SessionID, "", 1, "L", false, 0, "")

	pdf.Ln(2)
	pdf.SetDrawColor(204, 204, 204)
	y := pdf.GetY()
	pdf.Line(pageMargin, y, pageMargin+contentWidth, y)
	pdf.Ln(6)
}

func (g *Generator) writeExecutiveSummary(pdf *gofpdf.Fpdf, session *types.Session) {
	g.sectionTitle(pdf, "Executive Summary")

	overall := session.OverallScores.Overall
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(55, 65, 81)
	pdf.CellFormat(contentWidth, 6, fmt.Sprintf("Overall Score: %.1f/10", overall), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6, "Performance Level: "+PerformanceLevel(overall), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6,
		fmt.Sprintf("Interview Duration: %d minutes", durationMinutes(session)), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentWidth, 6,
		fmt.Sprintf("Questions Answered: %d", len(session.ConversationHistory)), "", 1, "L", false, 0, "")

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(contentWidth, 6, "Assessment:", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(contentWidth, 5.5, OverallAssessment(overall), "", "J", false)
	pdf.Ln(6)
}

// scoreBar 评分条形图的一行
type scoreBar struct {
	label string
	value float64
	r     int
	gr    int
	b     int
}

func (g *Generator) writeScoreBreakdown(pdf *gofpdf.Fpdf, session *types.Session) {
	g.sectionTitle(pdf, "Detailed Score Breakdown")

	bars := []scoreBar{
		{"Technical Skills", session.OverallScores.Technical, 59, 130, 246},
		{"Communication", session.OverallScores.Communication, 16, 185, 129},
		{"Problem Solving", session.OverallScores.ProblemSolving, 139, 92, 246},
		{"Completeness", session.OverallScores.Completeness, 245, 158, 11},
	}

	for _, bar := range bars {
		pdf.SetFont("Helvetica", "", 12)
		pdf.SetTextColor(55, 65, 81)
		pdf.CellFormat(contentWidth-30, 7, bar.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 7, fmt.Sprintf("%.1f/10", bar.value), "", 1, "R", false, 0, "")

		y := pdf.GetY() + 1
		pdf.SetFillColor(229, 231, 235)
		pdf.Rect(pageMargin, y, barWidth, 4, "F")
		fill := bar.value / 10 * barWidth
		if fill > 0 {
			pdf.SetFillColor(bar.r, bar.gr, bar.b)
			pdf.Rect(pageMargin, y, fill, 4, "F")
		}
		pdf.SetY(y + 8)
	}
	pdf.Ln(4)
}

func (g *Generator) writeQuestionAnalysis(pdf *gofpdf.Fpdf, session *types.Session) {
	g.sectionTitle(pdf, "Question-by-Question Analysis")

	for i, turn := range session.ConversationHistory {
		// 快到页底时换页，避免一轮问答被拦腰截断
		if pdf.GetY() > 230 {
			pdf.AddPage()
		}

		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(31, 41, 55)
		pdf.CellFormat(contentWidth, 7,
			fmt.Sprintf("Question %d - Score: %.1f/10", i+1, turn.Score), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(75, 85, 99)
		pdf.MultiCell(contentWidth, 5, turn.Question, "", "L", false)

		pdf.Ln(1)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetTextColor(107, 114, 128)
		pdf.CellFormat(contentWidth, 5, "Answer:", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(contentWidth, 4.5, turn.Answer, "", "L", false)

		if turn.Feedback != "" {
			pdf.Ln(1)
			pdf.SetFont("Helvetica", "B", 9)
			pdf.SetTextColor(5, 150, 105)
			pdf.CellFormat(contentWidth, 5, "Feedback:", "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 9)
			pdf.MultiCell(contentWidth, 4.5, turn.Feedback, "", "L", false)
		}
		pdf.Ln(4)
	}
}

func (g *Generator) writeRecommendations(pdf *gofpdf.Fpdf, session *types.Session) {
	pdf.AddPage()
	g.sectionTitle(pdf, "Recommendations for Improvement")

	for i, rec := range Recommendations(session.OverallScores) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.SetTextColor(55, 65, 81)
		pdf.CellFormat(contentWidth, 7, fmt.Sprintf("%d. %s", i+1, rec.Title), "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(75, 85, 99)
		pdf.SetX(pageMargin + 6)
		pdf.MultiCell(contentWidth-6, 5, rec.Description, "", "L", false)
		pdf.Ln(4)
	}
}

func (g *Generator) sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(31, 41, 55)
	pdf.CellFormat(contentWidth, 10, title, "", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func durationMinutes(session *types.Session) int {
	end := session.LastActivity
	if end.IsZero() || end.Before(session.StartTime) {
		end = time.Now()
	}
	minutes := int(end.Sub(session.StartTime).Round(time.Minute) / time.Minute)
	if minutes < 0 {
		minutes = 0
	}
	return minutes
}

// PerformanceLevel 按综合分划定表现档位
func PerformanceLevel(score float64) string {
	switch {
	case score >= 8.5:
		return "Excellent"
	case score >= 7.5:
		return "Very Good"
	case score >= 6.5:
		return "Good"
	case score >= 5.5:
		return "Fair"
	default:
		return "Needs Improvement"
	}
}

// OverallAssessment 按综合分生成整体评语
func OverallAssessment(overall float64) string {
	switch {
	case overall >= 8.5:
		return "Exceptional Excel skills demonstrated. The candidate shows mastery of advanced features and excellent problem-solving abilities. Ready for complex Excel-based roles."
	case overall >= 7.0:
		return "Strong Excel skills with good technical knowledge and communication. The candidate can handle most Excel tasks effectively with minimal supervision."
	case overall >= 5.5:
		return "Solid foundation in Excel with room for improvement in advanced features. The candidate would benefit from additional training in specific areas."
	default:
		return "Basic Excel knowledge demonstrated. Significant training and practice recommended before taking on Excel-intensive roles."
	}
}

// Recommendation 一条改进建议
type Recommendation struct {
	Title       string
	Description string
}

// Recommendations 按各维度得分生成改进建议，低于7分的维度各出一条，
// 末尾固定附一条通用建议。
func Recommendations(scores types.OverallScores) []Recommendation {
	var recs []Recommendation

	if scores.Technical < 7 {
		recs = append(recs, Recommendation{
			Title:       "Strengthen Technical Excel Skills",
			Description: "Focus on mastering advanced formulas, pivot tables, and data analysis features. Consider taking an advanced Excel course or certification program.",
		})
	}
	if scores.Communication < 7 {
		recs = append(recs, Recommendation{
			Title:       "Improve Technical Communication",
			Description: "Practice explaining Excel concepts clearly and concisely. Work on articulating your thought process when solving problems.",
		})
	}
	if scores.ProblemSolving < 7 {
		recs = append(recs, Recommendation{
			Title:       "Enhance Problem-Solving Approach",
			Description: "Practice breaking down complex Excel problems into smaller steps. Work on developing systematic approaches to data analysis challenges.",
		})
	}

	recs = append(recs, Recommendation{
		Title:       "Continuous Learning",
		Description: "Stay updated with new Excel features and best practices. Join Excel communities and practice with real-world datasets.",
	})
	return recs
}
