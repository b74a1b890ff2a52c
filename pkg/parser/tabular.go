package parser

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// 列类型.
const (
	ColumnInteger  = "integer"
	ColumnFloat    = "float"
	ColumnBoolean  = "boolean"
	ColumnDatetime = "datetime"
	ColumnString   = "string"
)

var errNoHeader = errors.New("missing header row")

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// TabularMetadata 表格类文件的结构信息.
type TabularMetadata struct {
	RowCount    int               `json:"row_count"`
	ColumnCount int               `json:"column_count"`
	Columns     []string          `json:"columns"`
	DataTypes   map[string]string `json:"data_types"`
	SheetName   string            `json:"sheet_name,omitempty"`
	SheetNames  []string          `json:"sheet_names,omitempty"`
	SheetCount  int               `json:"sheet_count,omitempty"`
}

// TabularContent 行记录，超出上限时 Truncated 为 true.
type TabularContent struct {
	Rows      []map[string]any `json:"rows"`
	Truncated bool             `json:"truncated"`
}

// buildTabular 首行为表头，其余行按列推断类型并转换.
func buildTabular(ctx context.Context, records [][]string, limits Limits) (*TabularContent, *TabularMetadata, error) {
	if len(records) == 0 {
		return nil, nil, errNoHeader
	}

	columns := normalizeHeader(records[0])
	body := records[1:]

	types := make([]string, len(columns))
	for i := range columns {
		types[i] = inferColumn(body, i)
	}

	keep := len(body)
	if limits.MaxRows > 0 && keep > limits.MaxRows {
		keep = limits.MaxRows
	}

	rows := make([]map[string]any, 0, keep)

	for n, rec := range body[:keep] {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = convertCell(cell(rec, i), types[i])
		}

		rows = append(rows, row)
	}

	dataTypes := make(map[string]string, len(columns))
	for i, col := range columns {
		dataTypes[col] = types[i]
	}

	meta := &TabularMetadata{
		RowCount:    len(body),
		ColumnCount: len(columns),
		Columns:     columns,
		DataTypes:   dataTypes,
	}

	return &TabularContent{Rows: rows, Truncated: keep < len(body)}, meta, nil
}

// normalizeHeader 空列名补为 column_N，重复列名追加序号.
func normalizeHeader(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}

		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = name + "_" + strconv.Itoa(n+1)
		} else {
			seen[name] = 1
		}

		out[i] = name
	}

	return out
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}

	return ""
}

// inferColumn 取所有非空值都满足的最窄类型.
func inferColumn(body [][]string, i int) string {
	isInt, isFloat, isBool, isTime := true, true, true, true
	seen := false

	for _, rec := range body {
		v := cell(rec, i)
		if v == "" || nonFinite(v) {
			continue
		}

		seen = true

		if isInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				isInt = false
			}
		}

		if isFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				isFloat = false
			}
		}

		if isBool {
			if _, ok := parseBool(v); !ok {
				isBool = false
			}
		}

		if isTime {
			if _, ok := parseTime(v); !ok {
				isTime = false
			}
		}

		if !isInt && !isFloat && !isBool && !isTime {
			return ColumnString
		}
	}

	switch {
	case !seen:
		return ColumnString
	case isInt:
		return ColumnInteger
	case isFloat:
		return ColumnFloat
	case isBool:
		return ColumnBoolean
	case isTime:
		return ColumnDatetime
	default:
		return ColumnString
	}
}

func convertCell(v, typ string) any {
	if v == "" {
		return nil
	}

	// NaN 与 Inf 在数值列中视为缺失值
	if (typ == ColumnInteger || typ == ColumnFloat) && nonFinite(v) {
		return nil
	}

	switch typ {
	case ColumnInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case ColumnFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	case ColumnBoolean:
		if b, ok := parseBool(v); ok {
			return b
		}
	}

	return v
}

// nonFinite 报告 v 是否为 NaN、Inf 一类无法编码为 JSON 数字的值.
func nonFinite(v string) bool {
	f, err := strconv.ParseFloat(v, 64)

	return err == nil && (math.IsNaN(f) || math.IsInf(f, 0))
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "yes":
		return true, true
	case "false", "no":
		return false, true
	}

	return false, false
}

func parseTime(v string) (time.Time, bool) {
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
