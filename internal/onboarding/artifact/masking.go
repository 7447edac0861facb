package artifact

import (
	"strings"

	"go.uber.org/zap"
)

const maskToken = "****"

// MaskSecret redacts a credential while keeping a short suffix so two
// values can still be told apart in logs.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// Secret is a zap field carrying a masked credential.
func Secret(key, value string) zap.Field {
	return zap.String(key, MaskSecret(value))
}
