package parser

import (
	"bufio"
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"
)

// TextMetadata 文本统计.
type TextMetadata struct {
	LineCount      int `json:"line_count"`
	WordCount      int `json:"word_count"`
	CharacterCount int `json:"character_count"`
}

// TextContent 文本内容，超出上限时截断.
type TextContent struct {
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// ParseText 统计行数、词数与字符数，内容需为 UTF-8.
func ParseText(ctx context.Context, path string, limits Limits) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		sb    strings.Builder
		meta  TextMetadata
		first = true
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if !utf8.ValidString(line) {
			return nil, errors.New("file is not valid UTF-8 text")
		}

		if meta.LineCount%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		meta.LineCount++
		meta.WordCount += len(strings.Fields(line))
		meta.CharacterCount += utf8.RuneCountInString(line)

		if !first {
			meta.CharacterCount++ // 换行符

			sb.WriteByte('\n')
		}

		first = false

		sb.WriteString(line)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	text, truncated := capText(sb.String(), limits.MaxTextBytes)

	return &Result{Content: TextContent{Text: text, Truncated: truncated}, Metadata: meta}, nil
}

// capText 按字节上限截断，不切断多字节字符.
func capText(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut], true
}
