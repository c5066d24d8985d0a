package facebook

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sha256hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestHashPIINormalizes(t *testing.T) {
	assert.Equal(t, hashPII("test@example.com"), hashPII("  Test@Example.COM "))
	assert.Equal(t, sha256hex("test@example.com"), hashPII("test@example.com"))
}

func TestHashPIIEmpty(t *testing.T) {
	assert.Equal(t, "", hashPII(""))
	assert.Equal(t, "", hashPII("   "))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5511987654321", normalizePhone("+55 (11) 98765-4321"))
	assert.Equal(t, "", normalizePhone("no digits"))
}

func TestFormatUserDataFullName(t *testing.T) {
	formatted := formatUserData(UserData{
		Name:  "Ana Maria Silva",
		Email: "Ana@Example.com",
		Phone: "+55 11 98765-4321",
	})

	assert.Equal(t, sha256hex("ana@example.com"), formatted["em"])
	assert.Equal(t, sha256hex("5511987654321"), formatted["ph"])
	assert.Equal(t, sha256hex("ana"), formatted["fn"])
	assert.Equal(t, sha256hex("silva"), formatted["ln"])
}

func TestFormatUserDataSingleName(t *testing.T) {
	formatted := formatUserData(UserData{Name: "Ana"})

	assert.Equal(t, sha256hex("ana"), formatted["fn"])
	_, hasLast := formatted["ln"]
	assert.False(t, hasLast)
}

func TestFormatUserDataEmpty(t *testing.T) {
	assert.Empty(t, formatUserData(UserData{}))
}
