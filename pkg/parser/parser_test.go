package parser_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/yeisme/fileparser/pkg/parser"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))

	return p
}

func parse(t *testing.T, fileType, path string, limits parser.Limits) (*parser.Result, error) {
	t.Helper()

	return parser.ParseFile(context.Background(), fileType, path, limits)
}

func TestDetectType(t *testing.T) {
	cases := map[string]string{
		"sales.csv":   parser.TypeCSV,
		"Book.XLSX":   parser.TypeExcel,
		"old.xls":     parser.TypeExcel,
		"report.pdf":  parser.TypePDF,
		"data.json":   parser.TypeJSON,
		"notes.txt":   parser.TypeText,
		"archive.tar": "",
		"noext":       "",
	}

	for name, want := range cases {
		got, ok := parser.DetectType(name)
		assert.Equal(t, want != "", ok, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseCSVSales(t *testing.T) {
	p := writeFile(t, "sales.csv", "product,amount\nA,10\nB,20\nC,30\n")

	res, err := parse(t, parser.TypeCSV, p, parser.Limits{})
	require.NoError(t, err)

	meta, ok := res.Metadata.(*parser.TabularMetadata)
	require.True(t, ok)
	assert.Equal(t, 3, meta.RowCount)
	assert.Equal(t, 2, meta.ColumnCount)
	assert.Equal(t, []string{"product", "amount"}, meta.Columns)
	assert.Equal(t, map[string]string{"product": "string", "amount": "integer"}, meta.DataTypes)

	content, ok := res.Content.(*parser.TabularContent)
	require.True(t, ok)
	require.Len(t, content.Rows, 3)
	assert.Equal(t, "A", content.Rows[0]["product"])
	assert.Equal(t, int64(10), content.Rows[0]["amount"])
	assert.False(t, content.Truncated)
}

func TestParseCSVTypes(t *testing.T) {
	body := "\ufeffid,price,active,day,note\n" +
		"1,1.5,true,2024-01-02,x\n" +
		"2,2,false,2024-01-03T10:00:00Z,\n" +
		"3,,yes,2024/01/04,z\n"

	res, err := parse(t, parser.TypeCSV, writeFile(t, "t.csv", body), parser.Limits{})
	require.NoError(t, err)

	meta := res.Metadata.(*parser.TabularMetadata)
	assert.Equal(t, map[string]string{
		"id":     "integer",
		"price":  "float",
		"active": "boolean",
		"day":    "datetime",
		"note":   "string",
	}, meta.DataTypes)

	rows := res.Content.(*parser.TabularContent).Rows
	assert.Nil(t, rows[2]["price"])
	assert.Equal(t, true, rows[2]["active"])
	assert.Equal(t, "2024-01-02", rows[0]["day"])
}

func TestParseCSVCapsRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")

	for i := range 10 {
		sb.WriteString(strings.Repeat("1", i+1) + "\n")
	}

	res, err := parse(t, parser.TypeCSV, writeFile(t, "big.csv", sb.String()), parser.Limits{MaxRows: 4})
	require.NoError(t, err)

	content := res.Content.(*parser.TabularContent)
	assert.Len(t, content.Rows, 4)
	assert.True(t, content.Truncated)
	assert.Equal(t, 10, res.Metadata.(*parser.TabularMetadata).RowCount)
}

func TestParseCSVMalformed(t *testing.T) {
	p := writeFile(t, "bad.csv", "a,b\n1,2,3\n")

	_, err := parse(t, parser.TypeCSV, p, parser.Limits{})
	require.Error(t, err)
}

func TestParseCSVEmpty(t *testing.T) {
	_, err := parse(t, parser.TypeCSV, writeFile(t, "empty.csv", ""), parser.Limits{})
	require.Error(t, err)

	res, err := parse(t, parser.TypeCSV, writeFile(t, "header.csv", "a,b\n"), parser.Limits{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Metadata.(*parser.TabularMetadata).RowCount)
}

func TestParseJSON(t *testing.T) {
	res, err := parse(t, parser.TypeJSON, writeFile(t, "a.json", `[{"a":[1,2]},{"b":1},3]`), parser.Limits{})
	require.NoError(t, err)

	meta := res.Metadata.(parser.JSONMetadata)
	assert.Equal(t, parser.JSONArray, meta.Type)
	require.NotNil(t, meta.ItemCount)
	assert.Equal(t, 3, *meta.ItemCount)
	assert.Equal(t, 3, meta.Depth)

	res, err = parse(t, parser.TypeJSON, writeFile(t, "o.json", `{"z":1,"a":{"b":true}}`), parser.Limits{})
	require.NoError(t, err)

	meta = res.Metadata.(parser.JSONMetadata)
	assert.Equal(t, parser.JSONObject, meta.Type)
	assert.Equal(t, []string{"a", "z"}, meta.Keys)
	require.NotNil(t, meta.KeyCount)
	assert.Equal(t, 2, *meta.KeyCount)
	assert.Nil(t, meta.ItemCount)

	res, err = parse(t, parser.TypeJSON, writeFile(t, "p.json", `"hello"`), parser.Limits{})
	require.NoError(t, err)
	assert.Equal(t, parser.JSONPrimitive, res.Metadata.(parser.JSONMetadata).Type)
	assert.Equal(t, "hello", res.Content)
}

func TestParseJSONInvalid(t *testing.T) {
	_, err := parse(t, parser.TypeJSON, writeFile(t, "bad.json", `{"a":`), parser.Limits{})
	require.Error(t, err)
}

func TestParseText(t *testing.T) {
	res, err := parse(t, parser.TypeText, writeFile(t, "n.txt", "hello world\nsecond line here\n"), parser.Limits{MaxTextBytes: 8})
	require.NoError(t, err)

	meta := res.Metadata.(parser.TextMetadata)
	assert.Equal(t, 2, meta.LineCount)
	assert.Equal(t, 5, meta.WordCount)
	assert.Equal(t, len("hello world\nsecond line here"), meta.CharacterCount)

	content := res.Content.(parser.TextContent)
	assert.Equal(t, "hello wo", content.Text)
	assert.True(t, content.Truncated)
}

func TestParseTextKeepsRunes(t *testing.T) {
	res, err := parse(t, parser.TypeText, writeFile(t, "u.txt", "你好世界"), parser.Limits{MaxTextBytes: 4})
	require.NoError(t, err)

	content := res.Content.(parser.TextContent)
	assert.Equal(t, "你", content.Text)
	assert.Equal(t, 4, res.Metadata.(parser.TextMetadata).CharacterCount)
}

func TestParseExcel(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"name", "score"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"ann", 9.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"bo", 7}))

	_, err := f.NewSheet("Extra")
	require.NoError(t, err)

	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	res, err := parse(t, parser.TypeExcel, p, parser.Limits{})
	require.NoError(t, err)

	meta := res.Metadata.(*parser.TabularMetadata)
	assert.Equal(t, 2, meta.RowCount)
	assert.Equal(t, 2, meta.ColumnCount)
	assert.Equal(t, "Sheet1", meta.SheetName)
	assert.Equal(t, 2, meta.SheetCount)
	assert.Equal(t, "float", meta.DataTypes["score"])
}

func TestParseNonFiniteNumbers(t *testing.T) {
	body := "id,reading,label\n1,NaN,NaN\n2,Inf,x\n3,1.5,-Infinity\n"

	res, err := parse(t, parser.TypeCSV, writeFile(t, "sensor.csv", body), parser.Limits{})
	require.NoError(t, err)

	meta := res.Metadata.(*parser.TabularMetadata)
	assert.Equal(t, "float", meta.DataTypes["reading"])
	assert.Equal(t, "string", meta.DataTypes["label"])

	rows := res.Content.(*parser.TabularContent).Rows
	assert.Nil(t, rows[0]["reading"])
	assert.Nil(t, rows[1]["reading"])
	assert.Equal(t, 1.5, rows[2]["reading"])
	assert.Equal(t, "NaN", rows[0]["label"])

	// 结果必须能编码为 JSON
	_, err = sonic.Marshal(res.Content)
	require.NoError(t, err)
}

func TestParseExcelNonFinite(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"name", "score"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"ann", "inf"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"bo", 7}))

	p := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(p))
	require.NoError(t, f.Close())

	res, err := parse(t, parser.TypeExcel, p, parser.Limits{})
	require.NoError(t, err)

	_, err = sonic.Marshal(res.Content)
	require.NoError(t, err)
	assert.Nil(t, res.Content.(*parser.TabularContent).Rows[0]["score"])
}

func TestParseUnreadableBinary(t *testing.T) {
	_, err := parse(t, parser.TypeExcel, writeFile(t, "x.xlsx", "not a zip"), parser.Limits{})
	require.Error(t, err)

	_, err = parse(t, parser.TypePDF, writeFile(t, "x.pdf", "not a pdf"), parser.Limits{})
	require.Error(t, err)
}

func TestParseUnsupported(t *testing.T) {
	_, err := parse(t, "exe", writeFile(t, "a.exe", "MZ"), parser.Limits{})
	require.ErrorIs(t, err, parser.ErrUnsupportedType)
}

func TestParsePanicRecovered(t *testing.T) {
	parser.Register("boom", func(context.Context, string, parser.Limits) (*parser.Result, error) {
		panic("kaboom")
	})

	_, err := parse(t, "boom", "ignored", parser.Limits{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestParseCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := parser.ParseFile(ctx, parser.TypeText, writeFile(t, "a.txt", "x"), parser.Limits{})
	require.ErrorIs(t, err, context.Canceled)
}
