// Package config loads the run configuration and the case declarations.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// settingKey folds base_url, base-url and baseURL to the same key.
func settingKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.NewReplacer("_", "", "-", "").Replace(key)
}

// lookupSetting returns the value of the first candidate present in settings.
// Keys are matched after folding case, underscores and dashes.
func lookupSetting(settings map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, candidate := range candidates {
		if val, ok := settings[candidate]; ok {
			return val, true
		}
		want := settingKey(candidate)
		for key, val := range settings {
			if settingKey(key) == want {
				return val, true
			}
		}
	}
	return nil, false
}

func blank(value interface{}) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func asString(value interface{}) (string, error) {
	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return cast.ToStringE(value)
}

func asInt(value interface{}) (int, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToIntE(value)
}

func asFloat64(value interface{}) (float64, error) {
	if blank(value) {
		return 0, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToFloat64E(value)
}

func asBool(value interface{}) (bool, error) {
	if blank(value) {
		return false, nil
	}
	if s, ok := value.(string); ok {
		value = strings.TrimSpace(s)
	}
	return cast.ToBoolE(value)
}

var errNonPositiveTimeout = errors.New("must be a positive duration")

// asTimeout reads a request timeout. Strings use Go duration syntax and
// bare numbers are seconds. Zero and negative values are rejected.
func asTimeout(value interface{}) (time.Duration, error) {
	var d time.Duration
	switch v := value.(type) {
	case time.Duration:
		d = v
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return 0, err
		}
		d = parsed
	default:
		seconds, err := cast.ToFloat64E(value)
		if err != nil {
			return 0, err
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	if d <= 0 {
		return 0, errNonPositiveTimeout
	}
	return d, nil
}

// asHeaders reads a header table. Keys come back canonicalized; keys that
// are empty or contain CR, LF, a colon or a space are rejected, as are
// values containing CR or LF.
func asHeaders(value interface{}) (map[string]string, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := cast.ToStringMapStringE(value)
	if err != nil {
		return nil, err
	}
	headers := make(map[string]string, len(raw))
	for key, val := range raw {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" || strings.ContainsAny(trimmed, "\r\n: ") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		name := http.CanonicalHeaderKey(trimmed)
		if strings.ContainsAny(val, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", name)
		}
		headers[name] = val
	}
	return headers, nil
}

// asStringSlice reads a list. A single string is one element, so a filter
// pattern containing spaces stays intact.
func asStringSlice(value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	default:
		return cast.ToStringSliceE(value)
	}
}

// toStringKeyMap reads a nested table such as auth or tracing.
func toStringKeyMap(value interface{}) (map[string]interface{}, error) {
	m, err := cast.ToStringMapE(value)
	if err != nil {
		return nil, fmt.Errorf("expected map, got %T", value)
	}
	return m, nil
}
