// Package domain file: internal/core/domain/dataset_models.go
package domain

import "encoding/json"

// SortDirection 排序方向
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// FallbackSpec 描述主查询返回空结果时的兜底策略。
// Query 与 StaticValues 二选一：Query 非空时额外发起一次上游请求，否则直接返回 StaticValues。
type FallbackSpec struct {
	Query           string   `json:"query,omitempty"`
	StaticValues    []string `json:"static_values,omitempty"`
	MessageTemplate string   `json:"message"`
	AlternativesKey string   `json:"alternatives_key"`
}

// RowFormat 上游 JSON 响应的行布局
type RowFormat string

const (
	// RowFormatObjects 行对象数组：[{"col": v, ...}, ...]（NASA Exoplanet Archive）
	RowFormatObjects RowFormat = ""
	// RowFormatColumnar 列定义与行值分离：{"columns":[{"name":..}], "data":[[..]]}（DaCHS 等标准 TAP 服务）
	RowFormatColumnar RowFormat = "columnar"
)

// UpstreamPolicy 是单个数据集的上游调用策略
type UpstreamPolicy struct {
	Upstream          string    `json:"upstream"` // "nasa" 或 "eu"
	TimeoutMs         int       `json:"timeout_ms"`
	MaxRetries        int       `json:"max_retries"`
	RetryableStatuses []int     `json:"retryable_statuses,omitempty"`
	RowFormat         RowFormat `json:"row_format,omitempty"`
}

// DatasetSpec 是一个静态、只读的远程数据表描述，进程启动后不再修改。
type DatasetSpec struct {
	Name           string         `json:"name"`
	ServiceLabel   string         `json:"service_label"`
	SourceTable    string         `json:"source_table"`
	Columns        []string       `json:"columns"`
	FilterTemplate string         `json:"filter,omitempty"`
	SortColumn     string         `json:"sort_column,omitempty"`
	SortDirection  SortDirection  `json:"sort_direction,omitempty"`
	RowCap         int            `json:"row_cap,omitempty"`
	Parameters     []string       `json:"parameters,omitempty"`
	Fallback       *FallbackSpec  `json:"fallback,omitempty"`
	Policy         UpstreamPolicy `json:"policy"`
}

// QueryRequest 每个请求构造一次，调用结束即丢弃
type QueryRequest struct {
	Dataset  *DatasetSpec
	Bindings map[string]string
}

// ResultKind 标识一次上游调用的最终结果类型
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultEmptyWithFallback
	ResultHTTPError
	ResultTimeout
	ResultNetworkError
	ResultParseError
	ResultMissingParameter
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultEmptyWithFallback:
		return "empty_with_fallback"
	case ResultHTTPError:
		return "http_error"
	case ResultTimeout:
		return "timeout"
	case ResultNetworkError:
		return "network_error"
	case ResultParseError:
		return "parse_error"
	case ResultMissingParameter:
		return "missing_parameter"
	default:
		return "unknown"
	}
}

// TapResult 是一次调用的不可变结果。
// Rows / Alternatives 保留上游原始字节，字段名与顺序不做任何改动。
type TapResult struct {
	Kind            ResultKind
	Rows            []json.RawMessage
	Alternatives    []json.RawMessage
	Message         string
	AlternativesKey string
	UpstreamStatus  int
	Detail          string
}
