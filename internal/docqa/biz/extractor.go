package biz

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/docqa/pkg/errors"
)

// Extractor 从文档字节中提取纯文本。
type Extractor interface {
	// Extract 返回按页序拼接的文本，页间以 "\n\n" 分隔。无法读取的文档返回 ErrExtractionFailed。
	Extract(ctx context.Context, data []byte) (string, error)
}

// PDFExtractor 基于 ledongthuc/pdf 的提取器。
type PDFExtractor struct{}

var _ Extractor = PDFExtractor{}

// Extract 逐页提取文本，解析失败的页被跳过，页间以空行分隔。
func (PDFExtractor) Extract(ctx context.Context, data []byte) (text string, err error) {
	// 畸形文件可能让解析器 panic
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors.ErrExtractionFailed.WithCause(fmt.Errorf("pdf parser panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", errors.ErrExtractionFailed.WithCause(err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", errors.ErrExtractionFailed.WithCause(err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(pageText)
	}

	if sb.Len() == 0 {
		return "", errors.ErrExtractionFailed.WithMessage("no extractable text")
	}
	return sb.String(), nil
}
