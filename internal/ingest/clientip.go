package ingest

import (
	"net"
	"strings"
)

// addressHeaders are consulted in order for the originating client address.
var addressHeaders = []string{
	"X-Forwarded-For",
	"Proxy-Client-IP",
	"WL-Proxy-Client-IP",
	"HTTP_X_FORWARDED_FOR",
	"HTTP_X_FORWARDED",
	"HTTP_X_CLUSTER_CLIENT_IP",
	"HTTP_CLIENT_IP",
	"HTTP_FORWARDED_FOR",
	"HTTP_FORWARDED",
	"HTTP_VIA",
	"REMOTE_ADDR",
}

// ClientIP returns the first usable address from the proxy headers, or the
// host part of remoteAddr.
func ClientIP(header func(string) string, remoteAddr string) string {
	for _, name := range addressHeaders {
		v := strings.TrimSpace(header(name))
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = strings.TrimSpace(v[:i])
		}
		if v != "" {
			return v
		}
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
