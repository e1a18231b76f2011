// Package device derives a coarse device label from the User-Agent so access
// logs can tell agents' workstations apart from scripted callers.
package device

import (
	"context"
	"strings"

	"github.com/mssola/useragent"
)

type contextKeyLabel struct{}

// Describe renders a user agent as "browser/os", "bot:<name>" or "unknown".
func Describe(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	if ua.Bot() {
		return "bot:" + name
	}
	os := ua.OS()
	if name == "" && os == "" {
		return "unknown"
	}
	label := name + "/" + os
	if ua.Mobile() {
		label += "/mobile"
	}
	return label
}

// Label returns the device label stored in ctx.
func Label(ctx context.Context) string {
	if v, ok := ctx.Value(contextKeyLabel{}).(string); ok {
		return v
	}
	return ""
}

// WithLabel injects a device label into ctx.
func WithLabel(ctx context.Context, label string) context.Context {
	return context.WithValue(ctx, contextKeyLabel{}, label)
}
