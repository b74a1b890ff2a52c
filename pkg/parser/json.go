package parser

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/bytedance/sonic"
)

// JSON 顶层类型.
const (
	JSONArray     = "array"
	JSONObject    = "object"
	JSONPrimitive = "primitive"
)

// JSONMetadata JSON 文档结构信息.
type JSONMetadata struct {
	Type      string   `json:"type"`
	ItemCount *int     `json:"item_count,omitempty"`
	Keys      []string `json:"keys,omitempty"`
	KeyCount  *int     `json:"key_count,omitempty"`
	Depth     int      `json:"depth"`
}

// ParseJSON 解析整个文档，对象键按字典序列出.
func ParseJSON(_ context.Context, path string, _ Limits) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var value any
	if err := sonic.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	meta := JSONMetadata{Type: JSONPrimitive, Depth: depth(value)}

	switch v := value.(type) {
	case []any:
		n := len(v)
		meta.Type = JSONArray
		meta.ItemCount = &n
	case map[string]any:
		n := len(v)
		keys := make([]string, 0, n)

		for k := range v {
			keys = append(keys, k)
		}

		sort.Strings(keys)

		meta.Type = JSONObject
		meta.Keys = keys
		meta.KeyCount = &n
	}

	return &Result{Content: value, Metadata: meta}, nil
}

// depth 标量为 0，容器为 1 加最深子节点.
func depth(v any) int {
	best := 0

	switch t := v.(type) {
	case []any:
		for _, c := range t {
			best = max(best, depth(c))
		}

		return best + 1
	case map[string]any:
		for _, c := range t {
			best = max(best, depth(c))
		}

		return best + 1
	default:
		return 0
	}
}
