package logger

import (
	"strings"

	"go.uber.org/zap"
)

const maskToken = "****"

// MaskEmail keeps the first two characters of the local part and the domain
// so an operator can correlate a delivery without the log holding the address.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	local, domain, ok := strings.Cut(trimmed, "@")
	if !ok || domain == "" {
		return maskToken
	}
	if len(local) <= 2 {
		return maskToken + "@" + domain
	}
	return local[:2] + maskToken + "@" + domain
}

// Email is a zap field holding a masked address.
func Email(key, value string) zap.Field {
	return zap.String(key, MaskEmail(value))
}
