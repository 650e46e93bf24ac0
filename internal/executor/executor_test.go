package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torosent/apicontract/internal/auth"
	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/isolation"
	"github.com/torosent/apicontract/internal/result"
	"github.com/torosent/apicontract/internal/spec"
)

func jsonHeaders() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", "application/json; charset=utf-8")
	return h
}

func requestSpec(t *testing.T, baseURL string) spec.RequestSpec {
	t.Helper()
	rs, err := spec.BuildRequestSpec(baseURL, nil)
	require.NoError(t, err)
	return rs
}

func TestExecuteHealthPasses(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, jsonHeaders(), []byte(`{"status":"UP"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := endpoint.Case{
			Name:                "health",
			Method:              endpoint.MethodGet,
			Path:                "/health",
			ExpectedStatus:      200,
			ExpectedContentType: "application/json",
			Assertions:          []endpoint.Assertion{endpoint.Equals("status", "UP")},
		}

		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)

		assert.Equal(t, result.Passed, res.Outcome, res.Detail())
		assert.Equal(t, result.KindNone, res.Kind)
		assert.Equal(t, 200, res.Status)
		assert.Equal(t, 1, res.Attempts)
		assert.Empty(t, res.Mismatches)
		assert.Empty(t, res.Curl, "passed cases carry no reproduction")
		assert.Equal(t, server.URL+"/health", res.URL)
	})
}

func TestExecuteNegativeStatus(t *testing.T) {
	c := endpoint.Case{
		Name:           "transfer invalid",
		Method:         endpoint.MethodPost,
		Path:           "/transfers",
		Body:           endpoint.StringBody("invalid_data"),
		ExpectedStatus: 400,
	}

	t.Run("server rejects", func(t *testing.T) {
		handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(400))
		httphelpers.WithServer(handler, func(server *httptest.Server) {
			res := New().Execute(context.Background(), requestSpec(t, server.URL), c)
			assert.Equal(t, result.Passed, res.Outcome, res.Detail())

			info := <-requests
			assert.Equal(t, "POST", info.Request.Method)
			assert.Equal(t, "invalid_data", string(info.Body))
			assert.Equal(t, "application/json", info.Request.Header.Get("Content-Type"))
		})
	})

	t.Run("server accepts", func(t *testing.T) {
		handler := httphelpers.HandlerWithResponse(201, jsonHeaders(), []byte(`{"id":"t-1"}`))
		httphelpers.WithServer(handler, func(server *httptest.Server) {
			res := New().Execute(context.Background(), requestSpec(t, server.URL), c)

			assert.Equal(t, result.Failed, res.Outcome)
			assert.Equal(t, result.KindAssertionFailure, res.Kind)
			require.Len(t, res.Mismatches, 1)
			assert.Contains(t, res.Detail(), "expected 400, got 201")
			assert.Contains(t, res.Curl, "--data-raw")
			assert.Equal(t, `{"id":"t-1"}`, res.BodySnippet)
		})
	})
}

func TestExecuteSetupErrorMakesNoCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	tests := []struct {
		name string
		c    endpoint.Case
		want string
	}{
		{
			name: "missing path parameter",
			c:    endpoint.Case{Name: "account", Method: endpoint.MethodGet, Path: "/accounts/{accountId}", PathParams: map[string]string{}, ExpectedStatus: 200},
			want: "accountId",
		},
		{
			name: "extra path parameter",
			c:    endpoint.Case{Name: "health", Method: endpoint.MethodGet, Path: "/health", PathParams: map[string]string{"id": "1"}, ExpectedStatus: 200},
			want: "not referenced",
		},
		{
			name: "unsupported method",
			c:    endpoint.Case{Name: "head", Method: "HEAD", Path: "/health", ExpectedStatus: 200},
			want: "unsupported method",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Execute(context.Background(), requestSpec(t, server.URL), tt.c)
			assert.Equal(t, result.SetupError, res.Outcome)
			assert.Equal(t, result.KindNone, res.Kind)
			assert.Contains(t, res.SetupIssue, tt.want)
			assert.Zero(t, res.Attempts)
		})
	}
	assert.Zero(t, atomic.LoadInt32(&calls), "no request may reach the server")
}

func TestExecuteReportsEveryMismatch(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(404, http.Header{"Content-Type": {"text/plain"}}, []byte(`{"error":"not found"}`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := endpoint.Case{
			Name:                "list users",
			Method:              endpoint.MethodGet,
			Path:                "/users",
			ExpectedStatus:      200,
			ExpectedContentType: "application/json",
			Assertions: []endpoint.Assertion{
				endpoint.HasKey("$", "data"),
				endpoint.Exists("error"),
				endpoint.NotNull("meta"),
			},
		}

		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)

		assert.Equal(t, result.Failed, res.Outcome)
		assert.Equal(t, result.KindAssertionFailure, res.Kind)
		require.Len(t, res.Mismatches, 4)
		assert.Equal(t, result.CheckStatus, res.Mismatches[0].Check)
		assert.Equal(t, "200", res.Mismatches[0].Expected)
		assert.Equal(t, "404", res.Mismatches[0].Observed)
		assert.Equal(t, result.CheckContentType, res.Mismatches[1].Check)
		assert.Equal(t, "text/plain", res.Mismatches[1].Observed)
		assert.Equal(t, result.CheckBody, res.Mismatches[2].Check)
		assert.Contains(t, res.Mismatches[2].Assertion, "has_key data")
		assert.Equal(t, result.CheckBody, res.Mismatches[3].Check)
		assert.Contains(t, res.Mismatches[3].Assertion, "meta")
	})
}

func TestExecuteUnparsableBody(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(200, jsonHeaders(), []byte(`<html>oops</html>`))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := endpoint.Case{
			Method:         endpoint.MethodGet,
			Path:           "/health",
			ExpectedStatus: 200,
			Assertions:     []endpoint.Assertion{endpoint.Equals("status", "UP"), endpoint.NotNull("version")},
		}

		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)

		assert.Equal(t, result.Failed, res.Outcome)
		require.Len(t, res.Mismatches, 1)
		assert.Equal(t, "unparsable body", res.Mismatches[0].Message)
	})
}

func TestExecuteContentTypeOnlyCheckedWhenDeclared(t *testing.T) {
	handler := httphelpers.HandlerWithResponse(400, http.Header{"Content-Type": {"text/html"}}, []byte("bad"))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := endpoint.Case{Method: endpoint.MethodPost, Path: "/transfers", Body: endpoint.StringBody("invalid_data"), ExpectedStatus: 400}
		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)
		assert.Equal(t, result.Passed, res.Outcome, res.Detail())
	})
}

func TestExecuteTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := endpoint.Case{Method: endpoint.MethodGet, Path: "/slow", ExpectedStatus: 200}
	res := New(WithTimeout(50*time.Millisecond)).Execute(context.Background(), requestSpec(t, server.URL), c)

	assert.Equal(t, result.Failed, res.Outcome)
	assert.Equal(t, result.KindTimeout, res.Kind)
	assert.NotEmpty(t, res.Cause)
	assert.Empty(t, res.Mismatches)
	assert.Equal(t, 1, res.Attempts)
}

func TestExecuteTransportError(t *testing.T) {
	httphelpers.WithServer(httphelpers.BrokenConnectionHandler(), func(server *httptest.Server) {
		c := endpoint.Case{Method: endpoint.MethodGet, Path: "/health", ExpectedStatus: 200}
		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)

		assert.Equal(t, result.Failed, res.Outcome)
		assert.Equal(t, result.KindTransportError, res.Kind)
		assert.NotEmpty(t, res.Cause)
		assert.NotEmpty(t, res.Curl)
	})
}

func TestExecuteConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := endpoint.Case{Method: endpoint.MethodGet, Path: "/health", ExpectedStatus: 200}
	res := New().Execute(context.Background(), requestSpec(t, url), c)

	assert.Equal(t, result.Failed, res.Outcome)
	assert.Equal(t, result.KindTransportError, res.Kind)
}

func TestExecuteSessionSendsBearerToken(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithResponse(200, jsonHeaders(), []byte(`{}`)))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		base := requestSpec(t, server.URL)
		ctrl := isolation.NewController(base, auth.Token("tok123"), nil, time.Second)
		session, err := ctrl.ResetBeforeCase()
		require.NoError(t, err)

		c := endpoint.Case{Method: endpoint.MethodGet, Path: "/accounts", ExpectedStatus: 200}
		res := New().ExecuteSession(context.Background(), session, c)
		require.Equal(t, result.Passed, res.Outcome, res.Detail())

		info := <-requests
		assert.Equal(t, "Bearer tok123", info.Request.Header.Get("Authorization"))
		assert.Equal(t, spec.DefaultUserAgent, info.Request.Header.Get("User-Agent"))
		assert.Equal(t, "application/json", info.Request.Header.Get("Accept"))
		assert.False(t, base.HasHeader("Authorization"), "base spec must stay unauthenticated")
	})
}

func TestExecuteResolvesPathAndQuery(t *testing.T) {
	handler, requests := httphelpers.RecordingHandler(httphelpers.HandlerWithResponse(200, jsonHeaders(), []byte(`{"balance":10}`)))
	httphelpers.WithServer(handler, func(server *httptest.Server) {
		c := endpoint.Case{
			Method:         endpoint.MethodGet,
			Path:           "/accounts/{accountId}/balance",
			PathParams:     map[string]string{"accountId": "abc123"},
			QueryParams:    map[string]string{"currency": "EUR"},
			ExpectedStatus: 200,
			Assertions:     []endpoint.Assertion{endpoint.Equals("balance", "10")},
		}
		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)
		assert.Equal(t, result.Passed, res.Outcome, res.Detail())

		info := <-requests
		assert.Equal(t, "/accounts/abc123/balance", info.Request.URL.Path)
		assert.Equal(t, "EUR", info.Request.URL.Query().Get("currency"))
	})
}

func TestExecuteRecordsDuration(t *testing.T) {
	httphelpers.WithServer(httphelpers.HandlerWithStatus(204), func(server *httptest.Server) {
		c := endpoint.Case{Method: endpoint.MethodDelete, Path: "/orders/1", ExpectedStatus: 204}
		res := New().Execute(context.Background(), requestSpec(t, server.URL), c)
		assert.Equal(t, result.Passed, res.Outcome, res.Detail())
		assert.Greater(t, res.Duration, time.Duration(0))
		assert.True(t, strings.HasPrefix(res.Method, "DELETE"))
	})
}

func TestExecuteDoesNotCarryCookiesBetweenCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
			w.WriteHeader(http.StatusOK)
			return
		}
		if _, err := r.Cookie("session"); err == nil {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	rs := requestSpec(t, server.URL)
	exec := New(WithTimeout(time.Second))

	login := exec.Execute(context.Background(), rs, endpoint.Case{Name: "login", Method: endpoint.MethodPost, Path: "/login", ExpectedStatus: 200})
	require.True(t, login.Passed(), login.Detail())

	check := exec.Execute(context.Background(), rs, endpoint.Case{Name: "check", Method: endpoint.MethodGet, Path: "/check", ExpectedStatus: 200})
	assert.True(t, check.Passed(), "cookie from an earlier call was sent: %s", check.Detail())
}

func TestSnippetKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("a", maxSnippetBytes-1) + "é" + "tail"
	got := snippet([]byte(body))

	assert.True(t, utf8.ValidString(got), "snippet split a rune: %q", got[len(got)-8:])
	assert.Equal(t, strings.Repeat("a", maxSnippetBytes-1)+"...", got)
	assert.Equal(t, "short", snippet([]byte("  short \n")))
}
