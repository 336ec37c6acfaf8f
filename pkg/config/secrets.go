package config

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// EnsureAPIToken generates a bearer token when auth is enabled but no token is
// configured. Returns the new token and whether one was generated.
func (c *Config) EnsureAPIToken() (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.API.AuthEnabled || strings.TrimSpace(c.API.Token) != "" {
		return "", false, nil
	}

	token, err := generateToken(24)
	if err != nil {
		return "", false, err
	}

	c.API.Token = token
	return token, true, nil
}

func generateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MaskSecret hides all but the last few characters of a secret value.
func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 5 {
		return "*****" + value
	}
	return "*****" + value[len(value)-5:]
}
