// Package spec builds the request and response baselines shared by every
// case in a run.
//
// A RequestSpec has no mutating methods. Extending it with a header, as the
// auth and isolation packages do per case, always yields a new value, so a
// single base spec can be handed to any number of concurrent cases.
package spec

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
)

const (
	HeaderContentType   = "Content-Type"
	HeaderAccept        = "Accept"
	HeaderUserAgent     = "User-Agent"
	HeaderAuthorization = "Authorization"

	MediaTypeJSON    = "application/json"
	DefaultUserAgent = "apicontract/1.0"
)

// RequestSpec is the baseline applied to every outgoing call: a base URI and
// a header set.
type RequestSpec struct {
	baseURL string
	headers http.Header
}

// BuildRequestSpec constructs a RequestSpec. Defaults for Content-Type, Accept
// and User-Agent are applied first and are overridden by caller headers.
func BuildRequestSpec(baseURL string, headers map[string]string) (RequestSpec, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return RequestSpec{}, errors.New("base URL is required")
	}

	h := http.Header{}
	h.Set(HeaderContentType, MediaTypeJSON)
	h.Set(HeaderAccept, MediaTypeJSON)
	h.Set(HeaderUserAgent, DefaultUserAgent)

	for key, value := range headers {
		canonical, err := canonicalHeader(key, value)
		if err != nil {
			return RequestSpec{}, err
		}
		h.Set(canonical, value)
	}

	return RequestSpec{baseURL: base, headers: h}, nil
}

func canonicalHeader(key, value string) (string, error) {
	trimmedKey := strings.TrimSpace(key)
	if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n: ") {
		return "", fmt.Errorf("invalid header key %q", key)
	}
	canonical := http.CanonicalHeaderKey(trimmedKey)
	if strings.ContainsAny(value, "\r\n") {
		return "", fmt.Errorf("invalid header value for %s", canonical)
	}
	return canonical, nil
}

// BaseURL returns the base URI without a trailing slash.
func (s RequestSpec) BaseURL() string {
	return s.baseURL
}

// Header returns the first value of the named header.
func (s RequestSpec) Header(name string) string {
	return s.headers.Get(name)
}

// HasHeader reports whether the named header is present.
func (s RequestSpec) HasHeader(name string) bool {
	_, ok := s.headers[http.CanonicalHeaderKey(name)]
	return ok
}

// Headers returns a copy of the header set.
func (s RequestSpec) Headers() http.Header {
	return s.headers.Clone()
}

// HeaderNames returns the canonical header names in sorted order.
func (s RequestSpec) HeaderNames() []string {
	names := make([]string, 0, len(s.headers))
	for name := range s.headers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// With returns a new spec carrying the given header in addition to (or in
// place of) the existing one. The receiver is left untouched.
func (s RequestSpec) With(name, value string) (RequestSpec, error) {
	canonical, err := canonicalHeader(name, value)
	if err != nil {
		return s, err
	}
	h := s.headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(canonical, value)
	return RequestSpec{baseURL: s.baseURL, headers: h}, nil
}

// WithHeaders applies several headers at once; see With.
func (s RequestSpec) WithHeaders(headers map[string]string) (RequestSpec, error) {
	if len(headers) == 0 {
		return s, nil
	}
	h := s.headers.Clone()
	if h == nil {
		h = http.Header{}
	}
	for key, value := range headers {
		canonical, err := canonicalHeader(key, value)
		if err != nil {
			return s, err
		}
		h.Set(canonical, value)
	}
	return RequestSpec{baseURL: s.baseURL, headers: h}, nil
}

// ResponseSpec is the default expectation for a successful call.
type ResponseSpec struct {
	Status      int
	ContentType string
}

// BuildResponseSpec constructs a ResponseSpec, defaulting to 200 and
// application/json.
func BuildResponseSpec(status int, contentType string) ResponseSpec {
	if status <= 0 {
		status = http.StatusOK
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = MediaTypeJSON
	}
	return ResponseSpec{Status: status, ContentType: contentType}
}

// MatchesContentType compares observed against the expected content type.
func (r ResponseSpec) MatchesContentType(observed string) bool {
	return ContentTypeMatches(r.ContentType, observed)
}

// ContentTypeMatches compares media types, ignoring parameters such as
// charset. An expected value of "*" or "*/*" matches anything; "type/*"
// matches any subtype.
func ContentTypeMatches(expected, observed string) bool {
	exp := mediaType(expected)
	if exp == "" || exp == "*" || exp == "*/*" {
		return true
	}
	obs := mediaType(observed)
	if obs == "" {
		return false
	}
	if strings.HasSuffix(exp, "/*") {
		return strings.HasPrefix(obs, strings.TrimSuffix(exp, "*"))
	}
	return exp == obs
}

func mediaType(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(value); err == nil {
		return strings.ToLower(mt)
	}
	if idx := strings.Index(value, ";"); idx >= 0 {
		value = value[:idx]
	}
	return strings.ToLower(strings.TrimSpace(value))
}
