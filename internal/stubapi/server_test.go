package stubapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealthAndVersion(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "UP", decode(t, rec)["status"])

	rec = do(t, s, http.MethodGet, "/version", "", nil)
	assert.Equal(t, Version, decode(t, rec)["version"])
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodPost, "/auth/login", `{"username":"alice","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "alice", body["user"])
	assert.NotEmpty(t, body["token"])

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	rec = do(t, s, http.MethodGet, "/me", "", map[string]string{"Cookie": SessionCookie + "=" + cookies[0].Value})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRequiresCredentials(t *testing.T) {
	s := New(Options{})
	rec := do(t, s, http.MethodPost, "/auth/login", `{"username":"alice"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMalformedJSONRejected(t *testing.T) {
	s := New(Options{})
	for _, path := range []string{"/auth/login", "/transfers", "/accounts/acc-1001"} {
		method := http.MethodPost
		if strings.HasPrefix(path, "/accounts") {
			method = http.MethodGet
		}
		rec := do(t, s, method, path, "invalid_data", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_data", decode(t, rec)["error"], path)
	}
}

func TestLogout(t *testing.T) {
	s := New(Options{})
	rec := do(t, s, http.MethodPost, "/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAccounts(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodGet, "/accounts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].([]interface{})
	require.Len(t, data, 2)
	assert.Equal(t, "acc-1001", data[0].(map[string]interface{})["id"])

	rec = do(t, s, http.MethodGet, "/accounts/acc-1002", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bob", decode(t, rec)["owner"])

	rec = do(t, s, http.MethodGet, "/accounts/acc-1001/balance", "", nil)
	assert.Equal(t, 2500.0, decode(t, rec)["balance"])

	rec = do(t, s, http.MethodGet, "/accounts/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransactionsRequireAccount(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodGet, "/transactions", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/transactions?accountId=acc-1001", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["data"])
}

func TestTransfers(t *testing.T) {
	s := New(Options{})

	rec := do(t, s, http.MethodPost, "/transfers", `{"fromAccount":"acc-1001","toAccount":"acc-1002","amount":10}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	id := created["id"].(string)
	assert.Len(t, id, 36)
	assert.Equal(t, "/transfers/"+id, rec.Header().Get("Location"))
	assert.Equal(t, "EUR", created["currency"])

	rec = do(t, s, http.MethodGet, "/transfers/"+id, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10.0, decode(t, rec)["amount"])

	rec = do(t, s, http.MethodPost, "/transfers", `{"amount":-5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_amount", decode(t, rec)["error"])

	rec = do(t, s, http.MethodPost, "/transfers", `[1,2]`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/transfers/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, s.Transfers(), 1)
	assert.Equal(t, id, s.Transfers()[0].ID)
}

func TestBearerToken(t *testing.T) {
	s := New(Options{Token: "secret"})

	rec := do(t, s, http.MethodGet, "/accounts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/accounts", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodGet, "/accounts", "", map[string]string{"Authorization": "Bearer secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmptyCollections(t *testing.T) {
	s := New(Options{})
	for _, path := range []string{"/users", "/products", "/orders"} {
		rec := do(t, s, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, `{"data":[]}`, strings.TrimSpace(rec.Body.String()), path)
	}
}

func TestServesOpenAPIDocument(t *testing.T) {
	s := New(Options{Token: "secret"})
	rec := do(t, s, http.MethodGet, "/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, OpenAPIDocument(), rec.Body.Bytes())
}

func TestPanicRecovered(t *testing.T) {
	s := New(Options{})
	s.Router.Get("/boom", func(w http.ResponseWriter, r *http.Request) { panic("boom") })
	rec := do(t, s, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
