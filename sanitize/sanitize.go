// Package sanitize scrubs secrets out of values headed for logs or API
// responses. The cache core never imports it; wire it in from the outside,
// typically via Logger.
package sanitize

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/tandem-cache/tandem"
)

var (
	hexTokenRe = regexp.MustCompile(`\b[a-f0-9]{32,}\b`)
	apiKeyRe   = regexp.MustCompile(`(?i)\b(sk-|key-|api[_-]?key[_-]?)[a-zA-Z0-9]{20,}\b`)
	emailRe    = regexp.MustCompile(`\b([a-zA-Z0-9_.+-]{2})[a-zA-Z0-9_.+-]*@([a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+)\b`)
	bearerRe   = regexp.MustCompile(`Bearer\s+[a-zA-Z0-9._-]+`)

	validEmailRe  = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)
	validTenantRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
)

// sensitiveKeys are field names whose values are masked wherever they appear.
var sensitiveKeys = map[string]struct{}{
	"password":           {},
	"token":              {},
	"auth_token":         {},
	"access_token":       {},
	"refresh_token":      {},
	"secret":             {},
	"api_key":            {},
	"openai_api_key":     {},
	"elevenlabs_api_key": {},
	"access_key":         {},
	"secret_key":         {},
	"authorization":      {},
	"credentials":        {},
}

// String masks token-looking spans in free text: 32+ char hex runs, prefixed
// API keys (sk-..., api_key...), Bearer credentials. Emails keep their first
// two characters and the domain.
func String(s string) string {
	s = hexTokenRe.ReplaceAllString(s, "****TOKEN****")
	s = apiKeyRe.ReplaceAllString(s, "${1}****")
	s = emailRe.ReplaceAllString(s, "${1}****@${2}")
	s = bearerRe.ReplaceAllString(s, "Bearer ****")
	return s
}

// Value sanitizes recursively: strings through String, maps with sensitive
// key names masked, slices element-wise. Everything else passes through.
func Value(v any) any {
	switch t := v.(type) {
	case string:
		return String(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = maskValue(val)
				continue
			}
			out[k] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Value(val)
		}
		return out
	default:
		return v
	}
}

// MaskSensitive prepares an API-response map for exposure: credential fields
// are dropped outright, the email field keeps just enough to correlate.
func MaskSensitive(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch strings.ToLower(k) {
		case "password", "token", "api_key", "secret":
			continue
		case "email":
			s, ok := v.(string)
			if !ok {
				out[k] = v
				continue
			}
			out[k] = maskEmail(s)
		default:
			out[k] = v
		}
	}
	return out
}

// HashSecret returns hex(sha256(value+salt)), for storing secrets verifiably
// without keeping them.
func HashSecret(value, salt string) string {
	sum := sha256.Sum256([]byte(value + salt))
	return hex.EncodeToString(sum[:])
}

// VerifyHash reports whether value+salt hashes to hash, in constant time.
func VerifyHash(value, salt, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashSecret(value, salt)), []byte(hash)) == 1
}

func ValidEmail(s string) bool { return validEmailRe.MatchString(s) }

func ValidTenantID(s string) bool { return validTenantRe.MatchString(s) }

// Logger wraps inner so messages and field values are sanitized before they
// reach the sink.
func Logger(inner tandem.Logger) tandem.Logger {
	return secureLogger{inner: inner}
}

type secureLogger struct{ inner tandem.Logger }

func (l secureLogger) Debug(msg string, f tandem.Fields) { l.inner.Debug(String(msg), fields(f)) }
func (l secureLogger) Info(msg string, f tandem.Fields)  { l.inner.Info(String(msg), fields(f)) }
func (l secureLogger) Warn(msg string, f tandem.Fields)  { l.inner.Warn(String(msg), fields(f)) }
func (l secureLogger) Error(msg string, f tandem.Fields) { l.inner.Error(String(msg), fields(f)) }

func fields(f tandem.Fields) tandem.Fields {
	if len(f) == 0 {
		return f
	}
	out := make(tandem.Fields, len(f))
	for k, v := range f {
		if isSensitiveKey(k) {
			out[k] = maskValue(v)
			continue
		}
		out[k] = Value(v)
	}
	return out
}

func isSensitiveKey(k string) bool {
	_, ok := sensitiveKeys[strings.ToLower(k)]
	return ok
}

func maskValue(v any) string {
	if s, ok := v.(string); ok && len(s) > 4 {
		return s[:4] + "****"
	}
	return "****"
}

func maskEmail(s string) string {
	at := strings.IndexByte(s, '@')
	if at < 2 {
		return "****"
	}
	return s[:2] + "****@" + s[at+1:]
}
