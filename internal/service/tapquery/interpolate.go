// Package tapquery file: internal/service/tapquery/interpolate.go
package tapquery

import (
	"regexp"
	"strings"
)

// ============================================================================
//  安全警告：以下代码将调用方传入的参数值原样拼接进 ADQL 查询，
//  不做任何引号转义或参数化处理，存在查询注入面 (例如 sourceID=x' OR '1'='1)。
//  行为与现有前端约定保持一致，替换为参数化策略时只需修改本文件。
// ============================================================================

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Placeholders 返回模板中出现的占位符名称（按出现顺序，去重）
func Placeholders(template string) []string {
	matches := placeholderRe.FindAllStringSubmatch(template, -1)
	seen := make(map[string]bool, len(matches))
	var names []string
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// interpolate 将 {name} 替换为 bindings[name] 的字面值。
// 任何一个占位符缺少绑定都会返回 MissingParameterError，绝不使用默认值。
func interpolate(dataset, template string, bindings map[string]string) (string, error) {
	for _, name := range Placeholders(template) {
		if _, ok := bindings[name]; !ok {
			return "", &MissingParameterError{Dataset: dataset, Name: name}
		}
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		return bindings[m[1:len(m)-1]]
	}), nil
}

// normalizeWhitespace 把换行、制表符和连续空白折叠成单个空格
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
