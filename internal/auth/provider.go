// Package auth resolves the run's credential and derives authenticated
// request specs from the shared base spec.
package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/torosent/apicontract/internal/spec"
)

// Provider defines the interface for credential sources. Token is called
// once per run.
type Provider interface {
	// Token retrieves the credential. An empty string means the run is
	// unauthenticated.
	Token(ctx context.Context) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}

// Token is the credential resolved for a run.
type Token string

// Empty reports whether no credential is configured.
func (t Token) Empty() bool {
	return strings.TrimSpace(string(t)) == ""
}

// String masks the credential so it never ends up in logs verbatim.
func (t Token) String() string {
	if t.Empty() {
		return "<none>"
	}
	s := string(t)
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// ResolveToken asks the provider for the run's credential. A nil provider
// resolves to the empty token.
func ResolveToken(ctx context.Context, p Provider) (Token, error) {
	if p == nil {
		return "", nil
	}
	tok, err := p.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}
	tok = strings.TrimSpace(tok)
	if strings.ContainsAny(tok, "\r\n") {
		return "", fmt.Errorf("resolve token: token contains line breaks")
	}
	return Token(tok), nil
}

// Augment returns a spec carrying "Authorization: Bearer <token>" when the
// token is non-empty, and the input unchanged otherwise. The input spec is
// never modified.
func Augment(base spec.RequestSpec, token Token) spec.RequestSpec {
	if token.Empty() {
		return base
	}
	derived, err := base.With(spec.HeaderAuthorization, "Bearer "+strings.TrimSpace(string(token)))
	if err != nil {
		// ResolveToken rejects CR/LF, so this only triggers for hand-built tokens.
		return base
	}
	return derived
}
