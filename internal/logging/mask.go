package logging

import (
	"log/slog"
	"net/url"
	"strings"
)

const (
	// MaskChar is the character used for masking.
	MaskChar = "*"
	// URLMaskLength is how many characters to show before masking URLs.
	URLMaskLength = 30
)

// sensitiveKeys are attribute keys whose values are never logged.
var sensitiveKeys = []string{"password", "secret", "token", "authorization"}

// MaskURL masks a webhook URL, showing only the first URLMaskLength characters.
// Webhook URLs embed their credentials in the path.
func MaskURL(u string) string {
	if len(u) <= URLMaskLength {
		return u
	}
	return u[:URLMaskLength] + strings.Repeat(MaskChar, 3)
}

// MaskDSN hides the password of a database connection string.
func MaskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); !ok {
		return dsn
	}
	u.User = url.UserPassword(u.User.Username(), "xxxxx")
	return u.String()
}

// IsSensitiveKey checks if an attribute key names secret data.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// MaskAttr is a slog ReplaceAttr hook that masks URLs, DSNs and secrets.
func MaskAttr(_ []string, a slog.Attr) slog.Attr {
	switch {
	case a.Key == KeyURL:
		return slog.String(a.Key, MaskURL(a.Value.String()))
	case a.Key == KeyDSN:
		return slog.String(a.Key, MaskDSN(a.Value.String()))
	case IsSensitiveKey(a.Key):
		return slog.String(a.Key, strings.Repeat(MaskChar, 8))
	}
	return a
}
