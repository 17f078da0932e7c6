package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"
)

const redacted = "[REDACTED]"

// Keys containing any of these fragments never reach the log sink.
var secretKeyFragments = []string{
	"token",
	"authorization",
	"password",
	"secret",
	"api_key",
	"apikey",
	"credentials",
}

// Keys containing any of these fragments are logged as a salted hash so
// records stay correlatable without exposing the identifier.
var hashedKeyFragments = []string{
	"user_id",
	"session_id",
}

var (
	redactOnce sync.Once
	redactOn   bool
	hashSalt   string
)

func redactionEnabled() bool {
	redactOnce.Do(func() {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			redactOn = false
		default:
			redactOn = true
		}
		hashSalt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
	return redactOn
}

func scrub(kv []interface{}) []interface{} {
	if len(kv) == 0 || !redactionEnabled() {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := stringify(kv[i])
		out = append(out, key, scrubValue(strings.ToLower(key), kv[i+1]))
	}
	return out
}

func scrubValue(key string, val interface{}) interface{} {
	if containsAny(key, secretKeyFragments) {
		return redacted
	}
	if containsAny(key, hashedKeyFragments) {
		return digest(val)
	}
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, inner := range v {
			out[k] = scrubValue(strings.ToLower(k), inner)
		}
		return out
	case string:
		if looksLikeBearer(v) {
			return redacted
		}
	}
	return val
}

func containsAny(key string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(key, f) {
			return true
		}
	}
	return false
}

func digest(val interface{}) string {
	raw := stringify(val)
	if raw == "" {
		return ""
	}
	h := sha256.New()
	_, _ = h.Write([]byte(hashSalt))
	_, _ = h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

// looksLikeBearer catches JWTs and sk- style provider keys passed as values.
func looksLikeBearer(s string) bool {
	if strings.HasPrefix(s, "sk-") && len(s) > 20 {
		return true
	}
	parts := strings.Split(s, ".")
	return len(parts) == 3 && len(parts[0]) > 10 && len(parts[1]) > 10
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
