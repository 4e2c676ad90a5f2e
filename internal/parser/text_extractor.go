package parser

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"ai-interviewer-go/internal/constants"

	"code.sajari.com/docconv"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
)

// TextExtractor 从简历文件中提取纯文本
type TextExtractor interface {
	// ExtractText 按MIME类型提取文本
	ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
}

// DocumentTextExtractor 支持PDF和DOCX的文本提取器。
// PDF走Eino解析器，DOCX走docconv。
type DocumentTextExtractor struct {
	pdfParser *pdf.PDFParser
	logger    *log.Logger
}

var _ TextExtractor = (*DocumentTextExtractor)(nil)

// ExtractorOption 提取器的配置选项
type ExtractorOption func(*DocumentTextExtractor)

// WithExtractorLogger 配置自定义日志记录器
func WithExtractorLogger(logger *log.Logger) ExtractorOption {
	return func(e *DocumentTextExtractor) {
		e.logger = logger
	}
}

// NewDocumentTextExtractor 初始化文本提取器。
// PDF解析配置为不按页面分割，获取整个文档的连续文本。
func NewDocumentTextExtractor(ctx context.Context, options ...ExtractorOption) (*DocumentTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &DocumentTextExtractor{
		pdfParser: p,
		logger:    log.New(os.Stderr, "[简历解析器] ", log.LstdFlags),
	}
	for _, option := range options {
		option(extractor)
	}

	return extractor, nil
}

// ExtractText 按MIME类型提取文本
func (e *DocumentTextExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("文件内容为空")
	}

	switch mimeType {
	case constants.MimePDF:
		return e.extractPDF(ctx, data)
	case constants.MimeDOCX:
		return e.extractDOCX(data)
	default:
		return "", fmt.Errorf("不支持的文件类型: %s", mimeType)
	}
}

func (e *DocumentTextExtractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("resume.pdf"),
	)
	if err != nil {
		return "", fmt.Errorf("PDF解析失败: %w", err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("PDF解析无结果")
	}

	// 合并所有文档的内容（以防万一返回了多个）
	var fullContent string
	for i, doc := range docs {
		fullContent += doc.Content
		if i < len(docs)-1 {
			fullContent += "\n\n"
		}
	}

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(fullContent), time.Since(startTime).Seconds())
	return fullContent, nil
}

func (e *DocumentTextExtractor) extractDOCX(data []byte) (string, error) {
	startTime := time.Now()

	res, err := docconv.Convert(bytes.NewReader(data), constants.MimeDOCX, true)
	if err != nil {
		return "", fmt.Errorf("DOCX解析失败: %w", err)
	}
	if res == nil || res.Body == "" {
		return "", fmt.Errorf("DOCX解析无结果")
	}

	e.logger.Printf("DOCX提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(res.Body), time.Since(startTime).Seconds())
	return res.Body, nil
}
