// Package parser 将上传文件解析为内容与元数据.
//
// 每种格式注册一个 Func，ParseFile 根据文件类型分派并把解析器的 panic 转为错误.
package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// 文件类型.
const (
	TypeCSV   = "csv"
	TypeExcel = "excel"
	TypePDF   = "pdf"
	TypeJSON  = "json"
	TypeText  = "text"
)

// ErrUnsupportedType 没有对应解析器.
var ErrUnsupportedType = errors.New("unsupported file type")

// extensionTypes 扩展名到文件类型.
var extensionTypes = map[string]string{
	"csv":  TypeCSV,
	"xlsx": TypeExcel,
	"xls":  TypeExcel,
	"pdf":  TypePDF,
	"json": TypeJSON,
	"txt":  TypeText,
}

// Limits 内容截断上限.
type Limits struct {
	// MaxRows 表格内容保留的最大行数，<=0 不限制
	MaxRows int
	// MaxTextBytes 文本内容保留的最大字节数，<=0 不限制
	MaxTextBytes int
}

// Result 解析结果，Content 与 Metadata 均可 JSON 序列化.
type Result struct {
	Content  any
	Metadata any
}

// Func 解析一个本地文件.
type Func func(ctx context.Context, path string, limits Limits) (*Result, error)

var (
	mu      sync.RWMutex
	parsers = map[string]Func{}
)

// Register 注册文件类型的解析器，重复注册会覆盖.
func Register(fileType string, fn Func) {
	mu.Lock()
	defer mu.Unlock()

	parsers[fileType] = fn
}

// Types 已注册的文件类型.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(parsers))
	for t := range parsers {
		out = append(out, t)
	}

	sort.Strings(out)

	return out
}

// Extension 取小写扩展名，不含点.
func Extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

// DetectType 按扩展名识别文件类型.
func DetectType(filename string) (string, bool) {
	t, ok := extensionTypes[Extension(filename)]

	return t, ok
}

// ParseFile 用 fileType 对应的解析器解析 path.
func ParseFile(ctx context.Context, fileType, path string, limits Limits) (res *Result, err error) {
	mu.RLock()
	fn, ok := parsers[fileType]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("parser panic: %v", r)
		}
	}()

	return fn(ctx, path, limits)
}

func init() {
	Register(TypeCSV, ParseCSV)
	Register(TypeExcel, ParseExcel)
	Register(TypePDF, ParsePDF)
	Register(TypeJSON, ParseJSON)
	Register(TypeText, ParseText)
}
