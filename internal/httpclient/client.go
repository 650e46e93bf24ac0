package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/spec"
)

// BuildRequest turns a request spec and a validated case into an
// *http.Request: path parameters are substituted, query parameters appended,
// case headers layered over the request spec's headers and the body attached.
// The spec and the case are only read.
func BuildRequest(ctx context.Context, rs spec.RequestSpec, c endpoint.Case) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	path, err := c.ResolvePath()
	if err != nil {
		return nil, err
	}

	target, err := joinURL(rs.BaseURL(), path, c.EncodedQuery())
	if err != nil {
		return nil, err
	}

	body := NewBodySource(c.Body)
	reader, err := body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, string(c.Method), target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = rs.Headers()
	for key, value := range c.Headers {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" || strings.ContainsAny(trimmed, "\r\n") || strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid case header %q", key)
		}
		req.Header.Set(http.CanonicalHeaderKey(trimmed), value)
	}
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}

	if c.Body == nil {
		// No payload declared: do not advertise one.
		req.ContentLength = 0
	} else if length, ok := body.ContentLength(); ok {
		req.ContentLength = length
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return body.NewReader()
	}

	return req, nil
}

func joinURL(base, path, query string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: scheme and host are required", base)
	}
	target := strings.TrimRight(base, "/") + path
	if query != "" {
		target += "?" + query
	}
	return target, nil
}

// NewTransport creates the transport shared by every per-case client. It
// carries connection pooling only; no per-case state lives on it.
func NewTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewStatelessClient returns a client without a cookie jar. Cookies set by
// one response are never sent on a later request.
func NewStatelessClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}
	if transport == nil {
		transport = NewTransport()
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewClient creates a client with its own empty cookie jar. Redirects are not
// followed so the case observes the status the API actually returned.
func NewClient(transport http.RoundTripper, timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	client := NewStatelessClient(transport, timeout)
	client.Jar = jar
	return client, nil
}

// IsTimeout reports whether err is a deadline or client timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
