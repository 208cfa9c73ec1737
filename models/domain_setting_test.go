package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCanonicalDomain(t *testing.T) {
	for _, d := range []string{"example.com", "xn--bcher-kva.example", "::1", "127.0.0.1", "my_host.local"} {
		assert.True(t, IsCanonicalDomain(d), d)
	}
	for _, d := range []string{"", "Example.ORG", "example.com.", "[::1]", "example.com/path", "a b.com", "user@example.com"} {
		assert.False(t, IsCanonicalDomain(d), d)
	}
}
