package matcher

import (
	"strings"

	"github.com/tidwall/gjson"
)

// normalizePath converts "$", "$.field" and "field" into gjson syntax.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "$" {
		return "@this"
	}
	if strings.HasPrefix(path, "$.") {
		return path[2:]
	}
	if strings.HasPrefix(path, "$[") {
		// $[0].id -> 0.id
		path = strings.TrimPrefix(path, "$[")
		if idx := strings.Index(path, "]"); idx >= 0 {
			path = path[:idx] + path[idx+1:]
		}
		return path
	}
	return path
}

// lookup resolves a path against the body.
func lookup(body []byte, path string) gjson.Result {
	return gjson.GetBytes(body, normalizePath(path))
}
