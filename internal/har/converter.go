// Package har turns a recorded HTTP Archive into declarative cases: every
// kept entry becomes a case expecting the recorded status, content type and
// top-level body shape.
package har

import (
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torosent/apicontract/internal/config"
)

// RecordedTag is attached to every converted case.
const RecordedTag = "recorded"

// Convert transforms HAR entries into case declarations in recording order.
// Entries without a recorded response are skipped.
func Convert(h *HAR, opts ConvertOptions) ([]config.CaseConfig, error) {
	if h == nil || h.Log == nil {
		return nil, fmt.Errorf("HAR is nil or has nil Log")
	}

	var base *url.URL
	if strings.TrimSpace(opts.BaseURL) != "" {
		parsed, err := url.Parse(strings.TrimSpace(opts.BaseURL))
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("base URL %q must be an absolute URL", opts.BaseURL)
		}
		base = parsed
	}

	var cases []config.CaseConfig
	seen := map[string]int{}
	for _, entry := range h.Log.Entries {
		if !shouldIncludeEntry(entry, opts) {
			continue
		}
		u, err := url.Parse(entry.Request.URL)
		if err != nil {
			continue
		}
		path, ok := relativePath(u, base)
		if !ok {
			continue
		}

		c := entryToCase(entry, u, path, opts)
		seen[c.Name]++
		if n := seen[c.Name]; n > 1 {
			c.Name = fmt.Sprintf("%s #%d", c.Name, n)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// shouldIncludeEntry applies the host, method and static asset filters.
func shouldIncludeEntry(entry *Entry, opts ConvertOptions) bool {
	if entry == nil || entry.Request == nil || entry.Response == nil || entry.Response.Status <= 0 {
		return false
	}
	req := entry.Request

	parsedURL, err := url.Parse(req.URL)
	if err != nil {
		return false
	}
	if len(opts.IncludeHosts) > 0 && !containsFold(opts.IncludeHosts, parsedURL.Host) {
		return false
	}
	if containsFold(opts.ExcludeHosts, parsedURL.Host) {
		return false
	}
	if len(opts.IncludeMethods) > 0 && !containsFold(opts.IncludeMethods, req.Method) {
		return false
	}
	if opts.ExcludeStatic && isStaticAsset(parsedURL.Path) {
		return false
	}
	return true
}

// relativePath strips the base path. Entries outside the base are rejected.
func relativePath(u, base *url.URL) (string, bool) {
	if base == nil {
		if u.Path == "" {
			return "/", true
		}
		return u.Path, true
	}
	if !strings.EqualFold(u.Scheme, base.Scheme) || !strings.EqualFold(u.Host, base.Host) {
		return "", false
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix != "" && u.Path != prefix && !strings.HasPrefix(u.Path, prefix+"/") {
		return "", false
	}
	rel := strings.TrimPrefix(u.Path, prefix)
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	return rel, true
}

func entryToCase(entry *Entry, u *url.URL, path string, opts ConvertOptions) config.CaseConfig {
	req := entry.Request
	resp := entry.Response
	method := strings.ToUpper(req.Method)

	c := config.CaseConfig{
		Name:           method + " " + path,
		Method:         method,
		Path:           path,
		QueryParams:    queryParams(req, u),
		ExpectedStatus: resp.Status,
		Tags:           []string{RecordedTag},
	}
	if opts.IncludeHeaders {
		c.Headers = extractHeaders(req.Headers)
	}
	if req.PostData != nil && req.PostData.Text != "" {
		c.Body = &config.Body{Raw: req.PostData.Text}
	}
	if resp.Content != nil && resp.Status != 204 {
		c.ExpectedContentType = mediaType(resp.Content.MimeType)
		if opts.StructureAssertions {
			c.Assertions = structureAssertions(resp.Content)
		}
	}
	return c
}

func queryParams(req *Request, u *url.URL) map[string]string {
	params := map[string]string{}
	for _, q := range req.QueryString {
		if q != nil && q.Name != "" {
			params[q.Name] = q.Value
		}
	}
	if len(params) == 0 {
		for key, values := range u.Query() {
			if len(values) > 0 {
				params[key] = values[len(values)-1]
			}
		}
	}
	if len(params) == 0 {
		return nil
	}
	return params
}

// structureAssertions derives has_key assertions from a recorded JSON
// object. Arrays and scalars only get a not_null check on the whole body.
func structureAssertions(content *Content) []config.AssertionConfig {
	if content.Encoding == "base64" || !strings.Contains(strings.ToLower(content.MimeType), "json") {
		return nil
	}
	if !gjson.Valid(content.Text) {
		return nil
	}
	body := gjson.Parse(content.Text)
	if !body.IsObject() {
		return []config.AssertionConfig{{Path: "$", Kind: "not_null"}}
	}
	var keys []string
	body.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	sort.Strings(keys)
	out := make([]config.AssertionConfig, 0, len(keys))
	for _, k := range keys {
		out = append(out, config.AssertionConfig{Path: "$", Kind: "has_key", Value: k})
	}
	return out
}

// isStaticAsset checks whether a path points to a static asset based on its
// file extension.
func isStaticAsset(path string) bool {
	lowerPath := strings.ToLower(path)
	staticExtensions := []string{
		".js", ".css", ".png", ".jpg", ".jpeg", ".gif", ".svg",
		".woff", ".woff2", ".ttf", ".eot", ".ico", ".map",
	}
	for _, ext := range staticExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return true
		}
	}
	return false
}

// managedHeaders are set by the harness or the transport and never copied
// from a recording. Authorization and Cookie come from the run's credential
// and the per-case session.
var managedHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailers":            true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
	"content-length":      true,
	"accept-encoding":     true,
	"authorization":       true,
	"cookie":              true,
}

// extractHeaders copies request headers the harness does not manage. A JSON
// Content-Type is dropped since it is the default.
func extractHeaders(headers []*Header) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		if header == nil || strings.HasPrefix(header.Name, ":") {
			continue
		}
		lowerName := strings.ToLower(header.Name)
		if managedHeaders[lowerName] {
			continue
		}
		if lowerName == "content-type" && mediaType(header.Value) == "application/json" {
			continue
		}
		result[header.Name] = header.Value
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func mediaType(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(value)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(value, ";")[0]))
	}
	return mt
}

func containsFold(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
