// Package tapquery file: internal/service/tapquery/dispatch.go
package tapquery

import (
	"encoding/json"
	"net/http"

	"ExoGate/internal/core/domain"
)

// Outcome 按照结果类型映射为 HTTP 状态码与 JSON 响应体。
// label 是面向用户的服务名称，例如 "KELT"。
func Outcome(label string, r domain.TapResult) (int, interface{}) {
	switch r.Kind {
	case domain.ResultSuccess:
		rows := r.Rows
		if rows == nil {
			rows = []json.RawMessage{}
		}
		return http.StatusOK, rows

	case domain.ResultEmptyWithFallback:
		alts := r.Alternatives
		if alts == nil {
			alts = []json.RawMessage{}
		}
		return http.StatusNotFound, map[string]interface{}{
			"message":         r.Message,
			r.AlternativesKey: alts,
		}

	case domain.ResultHTTPError:
		status := r.UpstreamStatus
		// 上游 5xx 视为上游连接层故障
		if status >= 500 || status < 400 {
			status = http.StatusBadGateway
		}
		return status, map[string]interface{}{
			"error":       "HTTP error from " + label + " service",
			"details":     r.Detail,
			"status_code": r.UpstreamStatus,
		}

	case domain.ResultTimeout:
		return http.StatusGatewayTimeout, map[string]interface{}{
			"error":   "Request to " + label + " service timed out",
			"details": r.Detail,
		}

	case domain.ResultParseError:
		return http.StatusBadGateway, map[string]interface{}{
			"error":   "Invalid JSON received from " + label + " service.",
			"details": r.Detail,
		}

	case domain.ResultMissingParameter:
		return http.StatusBadRequest, map[string]interface{}{
			"error":   r.Detail + " is required.",
			"details": "missing query parameter '" + r.Detail + "'",
		}

	default:
		return http.StatusBadGateway, map[string]interface{}{
			"error":   "General connection error to " + label + " service",
			"details": r.Detail,
		}
	}
}
