package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRecord(t *testing.T) {
	rec := Record{"id": "42", "name": "Alice"}
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"{{id}}", "42"},
		{`{"user":"{{name}}","id":{{id}}}`, `{"user":"Alice","id":42}`},
		{"{{missing}}", "{{missing}}"},
		{"{{missing|fallback}}", "fallback"},
		{"{{missing|}}", ""},
		{"{{id|0}}", "42"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ApplyRecord(tt.in, rec), tt.in)
	}
}

func TestMatrixRecords(t *testing.T) {
	assert.Nil(t, MatrixRecords(nil))

	recs := MatrixRecords(map[string][]string{
		"resource": {"users", "orders"},
		"format":   {"json"},
	})
	require.Len(t, recs, 2)
	assert.Equal(t, Record{"format": "json", "resource": "users"}, recs[0])
	assert.Equal(t, Record{"format": "json", "resource": "orders"}, recs[1])

	recs = MatrixRecords(map[string][]string{"a": {"1", "2"}, "b": {"x", "y"}})
	assert.Len(t, recs, 4)
}

func TestExpandFillsPathParamsAndNames(t *testing.T) {
	c := Case{
		Name:           "list {resource}",
		Method:         MethodGet,
		Path:           "/{resource}",
		ExpectedStatus: 200,
		Assertions:     []Assertion{HasKey("$", "data")},
	}
	out := c.Expand(MatrixRecords(map[string][]string{"resource": {"users", "products", "orders"}}))
	require.Len(t, out, 3)

	names := []string{out[0].Name, out[1].Name, out[2].Name}
	assert.Equal(t, []string{"list users", "list products", "list orders"}, names)
	for _, derived := range out {
		require.NoError(t, derived.Validate())
	}
	path, err := out[1].ResolvePath()
	require.NoError(t, err)
	assert.Equal(t, "/products", path)

	assert.Nil(t, c.PathParams, "source case must not change")
}

func TestExpandSubstitutesValuesWithoutMutatingSource(t *testing.T) {
	body := `{"amount":{{amount}}}`
	c := Case{
		Name:           "transfer",
		Method:         MethodPost,
		Path:           "/accounts/{accountId}/transfers",
		PathParams:     map[string]string{"accountId": "acc-{{account}}"},
		QueryParams:    map[string]string{"currency": "{{currency|EUR}}"},
		Headers:        map[string]string{"X-Req": "{{account}}"},
		Body:           &body,
		ExpectedStatus: 201,
		Assertions:     []Assertion{Equals("amount", "{{amount}}")},
	}
	out := c.Expand([]Record{{"account": "1", "amount": "10"}, {"account": "2", "amount": "20", "currency": "USD"}})
	require.Len(t, out, 2)

	assert.Equal(t, "transfer #1", out[0].Name)
	assert.Equal(t, "transfer #2", out[1].Name)
	assert.Equal(t, "acc-1", out[0].PathParams["accountId"])
	assert.Equal(t, "EUR", out[0].QueryParams["currency"])
	assert.Equal(t, "USD", out[1].QueryParams["currency"])
	assert.Equal(t, "2", out[1].Headers["X-Req"])
	assert.Equal(t, `{"amount":20}`, *out[1].Body)
	assert.Equal(t, "10", out[0].Assertions[0].Value)

	assert.Equal(t, "acc-{{account}}", c.PathParams["accountId"])
	assert.Equal(t, `{"amount":{{amount}}}`, *c.Body)
	assert.Equal(t, "{{amount}}", c.Assertions[0].Value)
}

func TestExpandWithoutRecords(t *testing.T) {
	c := Case{Name: "single"}
	out := c.Expand(nil)
	require.Len(t, out, 1)
	assert.Equal(t, "single", out[0].Name)
}

func TestExpandNumbersRepeatedNames(t *testing.T) {
	c := Case{Name: "list {resource}", Method: MethodGet, Path: "/{resource}"}
	records := MatrixRecords(map[string][]string{
		"resource": {"users", "orders"},
		"version":  {"v1", "v2"},
	})
	out := c.Expand(records)
	require.Len(t, out, 4)

	names := make([]string, 0, len(out))
	for _, e := range out {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"list orders #1", "list orders #2", "list users #1", "list users #2"}, names)
}

func TestExpandKeepsDistinctNamesAndAvoidsTakenSuffixes(t *testing.T) {
	c := Case{Name: "{label}", Method: MethodGet, Path: "/x"}
	out := c.Expand([]Record{{"label": "a"}, {"label": "a #1"}, {"label": "a"}, {"label": "b"}})
	require.Len(t, out, 4)

	assert.Equal(t, "a #2", out[0].Name)
	assert.Equal(t, "a #1", out[1].Name)
	assert.Equal(t, "a #3", out[2].Name)
	assert.Equal(t, "b", out[3].Name)
}
