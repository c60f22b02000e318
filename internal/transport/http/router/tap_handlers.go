// file: internal/transport/http/router/tap_handlers.go
package router

import (
	"net/http"
	"strings"

	"ExoGate/internal/core/domain"
	"ExoGate/internal/service/tapquery"

	"github.com/gin-gonic/gin"
)

// datasetHandler GET /api/:dataset。查询串中与数据集参数同名的值作为绑定，其余忽略。
func datasetHandler(p *tapquery.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("dataset")
		spec, ok := p.Catalog().Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset '" + name + "' not found"})
			return
		}

		bindings := make(map[string]string, len(spec.Parameters))
		for _, param := range spec.Parameters {
			if v := c.Query(param); v != "" {
				bindings[param] = v
			}
		}

		result := p.Run(c.Request.Context(), domain.QueryRequest{Dataset: spec, Bindings: bindings})
		status, body := tapquery.Outcome(spec.ServiceLabel, result)
		c.JSON(status, body)
	}
}

// customQueryHandler POST /api/tap-query，ADQL 原样转发
func customQueryHandler(p *tapquery.Pipeline) gin.HandlerFunc {
	type RequestBody struct {
		Query string `json:"query"`
	}
	return func(c *gin.Context) {
		var req RequestBody
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Query is required"})
			return
		}
		result := p.RunCustom(c.Request.Context(), req.Query)
		status, body := tapquery.Outcome(tapquery.CustomQueryLabel(), result)
		c.JSON(status, body)
	}
}

// datasetsHandler GET /api/datasets，列出数据集定义
func datasetsHandler(catalog *tapquery.Catalog) gin.HandlerFunc {
	type datasetInfo struct {
		Name       string   `json:"name"`
		Label      string   `json:"label"`
		Table      string   `json:"table"`
		Columns    []string `json:"columns"`
		Parameters []string `json:"parameters"`
		Upstream   string   `json:"upstream"`
	}
	return func(c *gin.Context) {
		specs := catalog.List()
		out := make([]datasetInfo, 0, len(specs))
		for _, s := range specs {
			params := s.Parameters
			if params == nil {
				params = []string{}
			}
			upstream := s.Policy.Upstream
			if upstream == "" {
				upstream = tapquery.UpstreamNASA
			}
			out = append(out, datasetInfo{
				Name:       s.Name,
				Label:      s.ServiceLabel,
				Table:      s.SourceTable,
				Columns:    s.Columns,
				Parameters: params,
				Upstream:   upstream,
			})
		}
		c.JSON(http.StatusOK, out)
	}
}
