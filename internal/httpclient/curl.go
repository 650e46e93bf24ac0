package httpclient

import (
	"net/http"
	"sort"
	"strings"

	"github.com/alessio/shellescape"
)

// CurlCommand renders a shell-safe curl invocation that reproduces the
// request. The Authorization header value is masked.
func CurlCommand(req *http.Request, body *string) string {
	if req == nil {
		return ""
	}
	args := []string{"curl", "-sS", "-X", req.Method}

	names := make([]string, 0, len(req.Header))
	for name := range req.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range req.Header[name] {
			if name == "Authorization" {
				value = maskAuthorization(value)
			}
			args = append(args, "-H", name+": "+value)
		}
	}

	if body != nil {
		args = append(args, "--data-raw", *body)
	}
	args = append(args, req.URL.String())

	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = shellescape.Quote(a)
	}
	return strings.Join(quoted, " ")
}

func maskAuthorization(value string) string {
	scheme, _, found := strings.Cut(value, " ")
	if !found {
		return "****"
	}
	return scheme + " ****"
}
