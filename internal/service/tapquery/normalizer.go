// Package tapquery file: internal/service/tapquery/normalizer.go
package tapquery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"ExoGate/internal/adapter/tap"
	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"
)

// Normalizer 解析上游 JSON，并在主查询为空时执行至多一次兜底
type Normalizer struct {
	exec port.TapExecutor
}

// NewNormalizer 兜底查询通过同一个 TapExecutor 发出
func NewNormalizer(exec port.TapExecutor) *Normalizer {
	return &Normalizer{exec: exec}
}

// Normalize 将原始响应转换为 TapResult。format 决定如何把响应体解码为行对象。
// 非空行集 → Success；空行集且配置了兜底 → EmptyWithFallback；兜底自身失败时返回兜底的错误。
func (n *Normalizer) Normalize(ctx context.Context, raw *port.RawResult, fb *preparedFallback, opts port.ExecOptions, format domain.RowFormat) domain.TapResult {
	rows, err := decodeRows(format, raw.Body)
	if err != nil {
		return domain.TapResult{Kind: domain.ResultParseError, Detail: err.Error()}
	}
	if len(rows) > 0 || fb == nil {
		if rows == nil {
			rows = []json.RawMessage{}
		}
		return domain.TapResult{Kind: domain.ResultSuccess, Rows: rows}
	}

	result := domain.TapResult{
		Kind:            domain.ResultEmptyWithFallback,
		Message:         fb.message,
		AlternativesKey: fb.key,
	}

	if fb.query == "" {
		alts := make([]json.RawMessage, 0, len(fb.static))
		for _, v := range fb.static {
			b, _ := json.Marshal(v)
			alts = append(alts, b)
		}
		result.Alternatives = alts
		return result
	}

	slog.Debug("主查询无结果，执行兜底查询", "dataset", opts.Label, "query", fb.query)
	fbRaw, err := n.exec.Execute(ctx, fb.query, opts)
	if err != nil {
		return FromError(err)
	}
	alts, err := decodeRows(format, fbRaw.Body)
	if err != nil {
		return domain.TapResult{Kind: domain.ResultParseError, Detail: err.Error()}
	}
	if alts == nil {
		alts = []json.RawMessage{}
	}
	result.Alternatives = alts
	return result
}

func decodeRows(format domain.RowFormat, body []byte) ([]json.RawMessage, error) {
	if format == domain.RowFormatColumnar {
		return parseColumnar(body)
	}
	return parseRows(body)
}

// parseRows 要求响应体是 JSON 数组；每个元素保持原始字节
func parseRows(body []byte) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("上游响应不是合法的 JSON 行数组: %w", err)
	}
	return rows, nil
}

type columnarTable struct {
	Columns []struct {
		Name string `json:"name"`
	} `json:"columns"`
	Data [][]json.RawMessage `json:"data"`
}

// parseColumnar 将 {"columns": [...], "data": [[...]]} 按列顺序拼成行对象，单元格保持原始字节
func parseColumnar(body []byte) ([]json.RawMessage, error) {
	var table columnarTable
	if err := json.Unmarshal(body, &table); err != nil {
		return nil, fmt.Errorf("上游响应不是合法的 JSON 表格: %w", err)
	}
	if table.Columns == nil {
		return nil, errors.New("上游 JSON 表格缺少 columns 字段")
	}
	names := make([][]byte, len(table.Columns))
	for i, col := range table.Columns {
		names[i], _ = json.Marshal(col.Name)
	}

	rows := make([]json.RawMessage, 0, len(table.Data))
	for i, cells := range table.Data {
		if len(cells) != len(names) {
			return nil, fmt.Errorf("第 %d 行有 %d 个值，但表格声明了 %d 列", i, len(cells), len(names))
		}
		var buf bytes.Buffer
		buf.WriteByte('{')
		for j, cell := range cells {
			if j > 0 {
				buf.WriteByte(',')
			}
			buf.Write(names[j])
			buf.WriteByte(':')
			if len(cell) == 0 {
				cell = json.RawMessage("null")
			}
			buf.Write(cell)
		}
		buf.WriteByte('}')
		rows = append(rows, buf.Bytes())
	}
	return rows, nil
}

// FromError 将管线中任一环节的错误归类为 TapResult
func FromError(err error) domain.TapResult {
	var (
		httpErr    *tap.HTTPError
		missingErr *MissingParameterError
	)
	switch {
	case errors.As(err, &missingErr):
		return domain.TapResult{Kind: domain.ResultMissingParameter, Detail: missingErr.Name}
	case errors.As(err, &httpErr):
		return domain.TapResult{Kind: domain.ResultHTTPError, UpstreamStatus: httpErr.Status, Detail: httpErr.Error()}
	case errors.Is(err, port.ErrUpstreamTimeout):
		return domain.TapResult{Kind: domain.ResultTimeout, Detail: err.Error()}
	default:
		return domain.TapResult{Kind: domain.ResultNetworkError, Detail: err.Error()}
	}
}
