package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseExcel 解析第一个工作表，首行为表头.
func ParseExcel(ctx context.Context, path string, limits Limits) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	// 跳过表头前的空行
	for len(rows) > 0 && len(rows[0]) == 0 {
		rows = rows[1:]
	}

	content, meta, err := buildTabular(ctx, rows, limits)
	if err != nil {
		return nil, err
	}

	meta.SheetName = sheets[0]
	meta.SheetNames = sheets
	meta.SheetCount = len(sheets)

	return &Result{Content: content, Metadata: meta}, nil
}
