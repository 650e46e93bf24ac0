// Package isolation gives every case a clean execution context.
//
// The base spec and the resolved token are read-only inputs. Each call to
// ResetBeforeCase derives a new authenticated spec from them and pairs it with
// a client whose cookie jar starts empty, so nothing a previous case set on
// its request or collected from a response can reach the next one.
package isolation

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/torosent/apicontract/internal/auth"
	"github.com/torosent/apicontract/internal/httpclient"
	"github.com/torosent/apicontract/internal/spec"
)

// Session is the per-case execution context. It must not be reused.
type Session struct {
	Spec   spec.RequestSpec
	Client *http.Client
}

// Controller hands out sessions derived from one base spec.
type Controller struct {
	base      spec.RequestSpec
	token     auth.Token
	transport http.RoundTripper
	timeout   time.Duration
	resets    atomic.Int64
}

// NewController creates a controller. A nil transport gets a fresh shared
// transport from the httpclient package.
func NewController(base spec.RequestSpec, token auth.Token, transport http.RoundTripper, timeout time.Duration) *Controller {
	if transport == nil {
		transport = httpclient.NewTransport()
	}
	return &Controller{
		base:      base,
		token:     token,
		transport: transport,
		timeout:   timeout,
	}
}

// ResetBeforeCase must be called immediately before a case executes.
func (c *Controller) ResetBeforeCase() (*Session, error) {
	client, err := httpclient.NewClient(c.transport, c.timeout)
	if err != nil {
		return nil, err
	}
	c.resets.Add(1)
	return &Session{
		Spec:   auth.Augment(c.base, c.token),
		Client: client,
	}, nil
}

// Resets returns how many sessions have been handed out.
func (c *Controller) Resets() int64 {
	return c.resets.Load()
}

// Base returns the unauthenticated base spec.
func (c *Controller) Base() spec.RequestSpec {
	return c.base
}

// Close releases idle connections held by the shared transport.
func (c *Controller) Close() {
	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}
