package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/sheetguard/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to the context so
// validation logs can name the caller.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	// RemoteAddr was already rewritten by TrustedRealIP.
	return core.ContextWithClient(ctx, clientIP(r), r.UserAgent())
}

// clientIP returns the request's client address without the port.
func clientIP(r *http.Request) string {
	if ip := extractHost(r.RemoteAddr); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
