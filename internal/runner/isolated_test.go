package runner_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/torosent/apicontract/internal/auth"
	"github.com/torosent/apicontract/internal/endpoint"
	"github.com/torosent/apicontract/internal/executor"
	"github.com/torosent/apicontract/internal/isolation"
	"github.com/torosent/apicontract/internal/result"
	"github.com/torosent/apicontract/internal/runner"
	"github.com/torosent/apicontract/internal/spec"
)

// sessionServer issues a cookie on /login and answers /me with 200 only when
// the cookie is presented. It records the headers each path received.
type sessionServer struct {
	mu   sync.Mutex
	seen map[string][]http.Header
}

func (s *sessionServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.seen[r.URL.Path] = append(s.seen[r.URL.Path], r.Header.Clone())
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/login":
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "s1", Path: "/"})
		w.Write([]byte(`{"ok":true}`))
	case "/me":
		if _, err := r.Cookie("session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"unauthenticated"}`))
			return
		}
		w.Write([]byte(`{"user":"alice"}`))
	case "/profile":
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing token"}`))
			return
		}
		w.Write([]byte(`{"user":"alice","role":"admin"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *sessionServer) headers(path string) []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[path]
}

var (
	loginCase = endpoint.Case{
		Name:           "login",
		Method:         endpoint.MethodPost,
		Path:           "/login",
		Headers:        map[string]string{"X-Case-Only": "login"},
		Body:           endpoint.StringBody(`{"user":"alice"}`),
		ExpectedStatus: 200,
	}
	profileCase = endpoint.Case{
		Name:           "profile with token",
		Method:         endpoint.MethodGet,
		Path:           "/profile",
		ExpectedStatus: 200,
		Assertions:     []endpoint.Assertion{endpoint.Equals("role", "admin")},
	}
	sessionOnlyCase = endpoint.Case{
		Name:           "me expects a session",
		Method:         endpoint.MethodGet,
		Path:           "/me",
		ExpectedStatus: 200,
	}
	anonymousCase = endpoint.Case{
		Name:           "me without session",
		Method:         endpoint.MethodGet,
		Path:           "/me",
		ExpectedStatus: 401,
		Assertions:     []endpoint.Assertion{endpoint.Equals("error", "unauthenticated")},
	}
)

func runIsolated(t *testing.T, baseURL string, cases []endpoint.Case) (runner.Result, *isolation.Controller) {
	t.Helper()
	base, err := spec.BuildRequestSpec(baseURL, nil)
	if err != nil {
		t.Fatalf("BuildRequestSpec error = %v", err)
	}
	ctrl := isolation.NewController(base, auth.Token("secret"), nil, time.Second)
	defer ctrl.Close()
	exec := executor.New(executor.WithTimeout(time.Second))
	r := runner.New(runner.Options{Executor: runner.Isolated(ctrl, exec)})
	return r.Run(context.Background(), cases), ctrl
}

func stable(r result.TestResult) result.TestResult {
	r.Duration = 0
	r.DurationMs = 0
	r.URL = ""
	r.Curl = ""
	return r
}

// TestIsolationPermutation checks that a case behaves the same whether or
// not another case ran before it.
func TestIsolationPermutation(t *testing.T) {
	srv := &sessionServer{seen: map[string][]http.Header{}}
	server := httptest.NewServer(srv)
	defer server.Close()

	alone, _ := runIsolated(t, server.URL, []endpoint.Case{anonymousCase})
	after, ctrl := runIsolated(t, server.URL, []endpoint.Case{loginCase, anonymousCase})

	if after.Results[0].Outcome != result.Passed {
		t.Fatalf("login case failed: %s", after.Results[0].Detail())
	}
	if alone.Results[0].Outcome != result.Passed {
		t.Fatalf("anonymous case failed alone: %s", alone.Results[0].Detail())
	}
	a, b := stable(alone.Results[0]), stable(after.Results[1])
	if a.Outcome != b.Outcome || a.Status != b.Status || len(a.Mismatches) != len(b.Mismatches) {
		t.Fatalf("case result depends on order: alone=%+v after=%+v", a, b)
	}
	if ctrl.Resets() != 2 {
		t.Fatalf("expected one reset per case, got %d", ctrl.Resets())
	}

	for _, h := range srv.headers("/me") {
		if h.Get("Cookie") != "" {
			t.Fatalf("cookie leaked across cases: %q", h.Get("Cookie"))
		}
		if h.Get("X-Case-Only") != "" {
			t.Fatalf("case header leaked across cases")
		}
		if h.Get("Authorization") != "Bearer secret" {
			t.Fatalf("expected bearer token on every case, got %q", h.Get("Authorization"))
		}
	}
}

func permutations(cases []endpoint.Case) [][]endpoint.Case {
	if len(cases) <= 1 {
		return [][]endpoint.Case{append([]endpoint.Case(nil), cases...)}
	}
	var out [][]endpoint.Case
	for i := range cases {
		rest := make([]endpoint.Case, 0, len(cases)-1)
		rest = append(rest, cases[:i]...)
		rest = append(rest, cases[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]endpoint.Case{cases[i]}, p...))
		}
	}
	return out
}

// TestIsolationAllOrderings runs every ordering of a fixed case set and
// checks that each case produces the same result it produces on its own.
func TestIsolationAllOrderings(t *testing.T) {
	srv := &sessionServer{seen: map[string][]http.Header{}}
	server := httptest.NewServer(srv)
	defer server.Close()

	set := []endpoint.Case{loginCase, profileCase, sessionOnlyCase, anonymousCase}

	solo := map[string]result.TestResult{}
	for _, c := range set {
		res, _ := runIsolated(t, server.URL, []endpoint.Case{c})
		solo[c.Name] = stable(res.Results[0])
	}
	if solo[sessionOnlyCase.Name].Outcome != result.Failed {
		t.Fatalf("a case needing a session must fail without one, got %s", solo[sessionOnlyCase.Name].Outcome)
	}
	if solo[profileCase.Name].Outcome != result.Passed {
		t.Fatalf("token case failed alone: %s", solo[profileCase.Name].Detail())
	}

	orderings := permutations(set)
	if len(orderings) != 24 {
		t.Fatalf("expected 24 orderings, got %d", len(orderings))
	}
	for _, order := range orderings {
		res, ctrl := runIsolated(t, server.URL, order)
		if len(res.Results) != len(order) {
			t.Fatalf("got %d results for %d cases", len(res.Results), len(order))
		}
		if ctrl.Resets() != int64(len(order)) {
			t.Fatalf("expected %d resets, got %d", len(order), ctrl.Resets())
		}
		for i, c := range order {
			got := stable(res.Results[i])
			if !reflect.DeepEqual(got, solo[c.Name]) {
				t.Fatalf("case %q at position %d differs from its solo run:\nsolo=%+v\ngot=%+v", c.Name, i, solo[c.Name], got)
			}
		}
	}
}
