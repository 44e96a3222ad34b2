// Package security holds HTTP hardening middleware for the billing API.
package security

import (
	"net/http"

	"github.com/unrolled/secure"

	"github.com/musharafmush/pos-sub010/internal/common"
)

// BodyLimit enforces a maximum request payload size.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversized payloads with 413 and caps the rest with
// http.MaxBytesReader so decoding fails once the limit is crossed.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request entity too large", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

// Headers configures common security headers for HTTP responses.
type Headers struct {
	Enable     bool
	EnableHSTS bool
	HSTSMaxAge int64
}

// Middleware attaches standard security headers to each response. Billing responses
// carry prices and totals, so they are never cached.
func (h Headers) Middleware(next http.Handler) http.Handler {
	if !h.Enable {
		return next
	}
	opts := secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	}
	if h.EnableHSTS {
		opts.STSSeconds = h.HSTSMaxAge
		if opts.STSSeconds <= 0 {
			opts.STSSeconds = 31536000
		}
	}
	headers := secure.New(opts)
	return headers.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	}))
}
