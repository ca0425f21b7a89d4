// Package validate checks and cleans CLI input before it reaches the store.
package validate

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
)

const (
	// MaxNameLength bounds user, project and list names.
	MaxNameLength = 128
	// MaxTitleLength bounds task titles.
	MaxTitleLength = 255
	// MaxWebhookNameLength bounds webhook names.
	MaxWebhookNameLength = 50
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
)

var internalNets = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"fc00::/7",
	"fe80::/10",
	"::1/128",
)

// Clean trims whitespace and drops control characters.
func Clean(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		if !unicode.IsControl(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Name cleans a display name and checks it is present and at most max runes.
func Name(field, value string, max int) (string, error) {
	value = Clean(value)
	if value == "" {
		return "", errors.NewUserErrorWithField(field, value,
			field+" cannot be empty",
			"Provide a value for "+field)
	}
	if utf8.RuneCountInString(value) > max {
		return "", errors.NewUserErrorWithField(field, value,
			field+" too long",
			fmt.Sprintf("Use %d characters or fewer", max))
	}
	return value, nil
}

// Email checks a bare address such as ada@example.com and returns it
// lowercased.
func Email(value string) (string, error) {
	value = strings.TrimSpace(value)
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value || addr.Name != "" {
		return "", errors.NewUserErrorWithField("email", value,
			"Invalid email address",
			"Use a plain address like ada@example.com")
	}
	return strings.ToLower(value), nil
}

// WebhookName validates a webhook identifier.
func WebhookName(name string) error {
	if name == "" {
		return errors.NewUserError("Webhook name cannot be empty", "Provide a name like 'team-slack'")
	}
	if len(name) > MaxWebhookNameLength {
		return errors.NewUserErrorWithField("name", name,
			"Webhook name too long",
			fmt.Sprintf("Use %d characters or fewer", MaxWebhookNameLength))
	}
	if !model.IsValidWebhookName(name) {
		return errors.NewUserErrorWithField("name", name,
			"Invalid webhook name",
			"Start with a letter or number and use only letters, numbers, dashes or underscores")
	}
	return nil
}

// URL validates a webhook endpoint. HTTPS is required except for localhost,
// and hosts in private ranges are rejected.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", fmt.Sprintf("URLs must be %d characters or fewer", MaxURLLength))
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	if isLocalhost(hostname) {
		return nil
	}
	if parsed.Scheme == "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https://. HTTP is only allowed for localhost.")
	}
	return checkInternalIP(hostname)
}

func isLocalhost(hostname string) bool {
	return hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"
}

func checkInternalIP(hostname string) error {
	if ip := net.ParseIP(hostname); ip != nil {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
		return nil
	}

	// Unresolvable hosts are accepted; the send will fail and be recorded.
	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Hostname resolves to internal IP",
				"Webhook URLs must point to external services")
		}
	}
	return nil
}

func isInternalIP(ip net.IP) bool {
	for _, n := range internalNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// Positive checks a count flag such as --days or --batch.
func Positive(field string, value int, allowZero bool) error {
	if value > 0 || (allowZero && value == 0) {
		return nil
	}
	bound := "greater than 0"
	if allowZero {
		bound = "0 or greater"
	}
	return errors.NewUserErrorWithField(field, fmt.Sprint(value),
		"Value out of range",
		fmt.Sprintf("--%s must be %s", field, bound))
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}
