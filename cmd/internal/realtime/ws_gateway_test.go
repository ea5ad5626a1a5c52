package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{
		"https://App.Example.com",
		"http://localhost:5173",
		"https://app.example.com:443",
		"*",
		"",
	})

	// Hosts only, lowercased, deduplicated, sorted. Wildcards and blanks
	// never widen the allowlist.
	require.Equal(t, []string{"app.example.com", "localhost"}, got)

	require.Empty(t, deriveOriginPatternsFromAllowedOrigins(nil))
}
