package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// PDFMetadata PDF 统计.
type PDFMetadata struct {
	PageCount      int `json:"page_count"`
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`
}

// ParsePDF 逐页提取纯文本.
func ParsePDF(ctx context.Context, path string, limits Limits) (*Result, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var sb strings.Builder

	pages := r.NumPage()
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}

		sb.WriteString(text)
	}

	full := sb.String()
	text, truncated := capText(full, limits.MaxTextBytes)

	meta := PDFMetadata{
		PageCount:      pages,
		WordCount:      len(strings.Fields(full)),
		CharacterCount: utf8.RuneCountInString(full),
	}

	return &Result{Content: TextContent{Text: text, Truncated: truncated}, Metadata: meta}, nil
}
