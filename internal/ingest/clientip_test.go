package ingest

import (
	"net/http"
	"testing"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote only", nil, "203.0.113.7:51234", "203.0.113.7"},
		{"remote without port", nil, "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"}, "10.0.0.2:80", "198.51.100.1"},
		{"unknown skipped", map[string]string{"X-Forwarded-For": "unknown", "Proxy-Client-IP": "198.51.100.9"}, "10.0.0.2:80", "198.51.100.9"},
		{"header order", map[string]string{"HTTP_VIA": "198.51.100.3", "HTTP_CLIENT_IP": "198.51.100.2"}, "", "198.51.100.2"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h[k] = []string{v}
			}
			got := ClientIP(func(name string) string {
				if v := h[name]; len(v) > 0 {
					return v[0]
				}
				return ""
			}, tt.remote)
			if got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
