package main

import (
	"fmt"
	"strings"

	"github.com/torosent/apicontract/internal/auth"
	"github.com/torosent/apicontract/internal/config"
)

// buildAuthProvider picks the credential source. Without an auth section the
// configured token, possibly empty, is used as is.
func buildAuthProvider(cfg *config.Config) (auth.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	authCfg := cfg.Auth
	switch config.AuthType(strings.TrimSpace(string(authCfg.Type))) {
	case "", config.AuthTypeStatic:
		if strings.TrimSpace(cfg.Token) == "" {
			return nil, nil
		}
		return auth.NewStaticTokenProvider(cfg.Token), nil
	case config.AuthTypeOAuth2ClientCredentials:
		return auth.NewOAuth2ClientCredentialsProvider(
			authCfg.TokenURL,
			authCfg.ClientID,
			authCfg.ClientSecret,
			authCfg.Scopes,
			cfg.Timeout,
		)
	default:
		return nil, fmt.Errorf("unsupported auth type %q", authCfg.Type)
	}
}
