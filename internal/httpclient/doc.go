// Package httpclient turns a request spec and an endpoint case into an HTTP
// request and provides the clients that send it.
//
// # Request Building
//
// [BuildRequest] combines the (possibly auth-augmented) spec with a case:
//
//	req, err := httpclient.BuildRequest(ctx, requestSpec, c)
//	if err != nil {
//		return err
//	}
//
// The request spec's headers are copied onto the request, so nothing the
// transport or a later case does can reach back into the request spec.
//
// # HTTP Client
//
// [NewTransport] creates the pooled transport shared across a run, and
// [NewClient] wraps it in a client with a fresh cookie jar. The isolation
// package creates one client per case:
//
//	transport := httpclient.NewTransport()
//	client, err := httpclient.NewClient(transport, 10*time.Second)
//
// # Reproduction
//
// [CurlCommand] renders a failed request as a shell-quoted curl command for
// reports.
package httpclient
