// Package tapquery 实现 TAP 代理管线：查询构建、上游调用、响应规整与结果分发。
package tapquery

import (
	"fmt"
	"strconv"
	"strings"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/core/port"
)

// MissingParameterError 模板引用的占位符没有对应的运行期绑定
type MissingParameterError struct {
	Dataset string
	Name    string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("数据集 '%s' 缺少参数 '%s'", e.Dataset, e.Name)
}

func (e *MissingParameterError) Is(target error) bool { return target == port.ErrMissingParameter }

// Build 根据数据集定义与绑定生成 ADQL 查询串：
//
//	SELECT [TOP n] col, ... FROM table [WHERE filter] [ORDER BY col dir]
func Build(spec *domain.DatasetSpec, bindings map[string]string) (string, error) {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if spec.RowCap > 0 {
		sb.WriteString("TOP ")
		sb.WriteString(strconv.Itoa(spec.RowCap))
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.Join(spec.Columns, ", "))
	sb.WriteString(" FROM ")
	sb.WriteString(spec.SourceTable)

	if filter := normalizeWhitespace(spec.FilterTemplate); filter != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(filter)
	}
	if spec.SortColumn != "" {
		dir := spec.SortDirection
		if dir == "" {
			dir = domain.SortAsc
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(spec.SortColumn)
		sb.WriteByte(' ')
		sb.WriteString(string(dir))
	}

	return interpolate(spec.Name, sb.String(), bindings)
}

// preparedFallback 是绑定参数后的兜底策略
type preparedFallback struct {
	query   string
	static  []string
	message string
	key     string
}

// prepareFallback 对兜底查询和提示消息做同样的参数替换
func prepareFallback(spec *domain.DatasetSpec, bindings map[string]string) (*preparedFallback, error) {
	fb := spec.Fallback
	if fb == nil {
		return nil, nil
	}
	msg, err := interpolate(spec.Name, fb.MessageTemplate, bindings)
	if err != nil {
		return nil, err
	}
	out := &preparedFallback{message: msg, key: fb.AlternativesKey, static: fb.StaticValues}
	if fb.Query != "" {
		q, err := interpolate(spec.Name, normalizeWhitespace(fb.Query), bindings)
		if err != nil {
			return nil, err
		}
		out.query = q
	}
	if out.key == "" {
		out.key = "available_values"
	}
	return out, nil
}
