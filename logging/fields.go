package logging

import (
	"sort"
	"strings"
)

const redacted = "[REDACTED]"

var sensitiveKeys = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"private_key",
	"privatekey",
	"cookie",
}

type Fields map[string]interface{}

func WithField(key string, value interface{}) Fields {
	return Fields{key: value}
}

// Merge returns a new Fields holding f overlaid with other. Neither input is modified.
func (f Fields) Merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Sanitize returns a copy of f with sensitive values replaced.
func (f Fields) Sanitize() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if IsSensitiveKey(k) {
			out[k] = redacted
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = map[string]interface{}(Fields(nested).Sanitize())
			continue
		}
		out[k] = v
	}
	return out
}

// Keys returns the field names in lexical order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsSensitiveKey matches case-insensitively on any known secret-bearing key fragment.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return k == "auth"
}
