package facebook

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// UserData is the raw contact information attached to a conversion event.
// Fields are optional; empty fields are omitted from the outbound payload.
type UserData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// hashPII normalizes (trim + lowercase) and SHA-256 hashes a value. Raw PII
// never leaves the process. Empty input hashes to "".
func hashPII(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// normalizePhone strips every non-digit character.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// formatUserData builds the hashed user_data object: em, ph, fn, ln. First
// name is the first word of Name, last name the final word when more than
// one is present.
func formatUserData(user UserData) map[string]string {
	formatted := make(map[string]string)

	if user.Email != "" {
		formatted["em"] = hashPII(user.Email)
	}

	if user.Phone != "" {
		formatted["ph"] = hashPII(normalizePhone(user.Phone))
	}

	if name := strings.TrimSpace(user.Name); name != "" {
		parts := strings.Fields(name)
		formatted["fn"] = hashPII(parts[0])
		if len(parts) > 1 {
			formatted["ln"] = hashPII(parts[len(parts)-1])
		}
	}

	return formatted
}
