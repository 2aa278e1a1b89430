package server

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOriginPolicy(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080", " HTTPS://Chat.Example.com ", "not a url", ""}, discardLogger())

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"https://chat.example.com", true},
		{"https://CHAT.example.com", true},
		{"http://chat.example.com", false},
		{"http://localhost:9090", false},
		{"", false},
		{"::bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			require.Equal(t, tt.want, policy.allows(tt.origin))
		})
	}
}

func TestOriginPolicyWildcard(t *testing.T) {
	policy := newOriginPolicy([]string{"*"}, discardLogger())

	require.True(t, policy.allows("https://anywhere.example"))
	require.False(t, policy.allows(""), "a missing origin is never allowed")
}

func TestCheckOriginReadsHeader(t *testing.T) {
	policy := newOriginPolicy([]string{"http://localhost:8080"}, discardLogger())

	req := httptest.NewRequest("GET", "/ws", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	require.True(t, policy.checkOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	require.False(t, policy.checkOrigin(req))
}
