package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"creditgate/pkg/requestcontext"
)

// ClientMetadata records the caller's IP and a normalized user agent on the
// context. Audit events pick both up when domain logic emits them.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithClientMetadata(r.Context(),
			clientIP(r), normalizeUserAgent(r.UserAgent()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	// First hop of X-Forwarded-For is the original client when the
	// service sits behind a trusted proxy.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// normalizeUserAgent condenses the raw header to "browser/version (os)" so
// audit rows stay compact and comparable.
func normalizeUserAgent(raw string) string {
	if raw == "" {
		return ""
	}
	ua := useragent.New(raw)
	name, version := ua.Browser()
	if name == "" {
		return raw
	}
	out := name
	if version != "" {
		out += "/" + version
	}
	if os := ua.OS(); os != "" {
		out += " (" + os + ")"
	}
	return out
}
