package middleware

import (
	"net/http"
	"net/url"
	"strings"
)

// OriginPolicy decides which pages may embed the widget. Requests without an
// Origin header and same-origin requests are always allowed.
type OriginPolicy struct {
	any     bool
	origins map[string]bool
}

// NewOriginPolicy builds a policy from origins like "https://example.com".
// "*" allows every origin; an empty list allows same-origin only.
func NewOriginPolicy(origins []string) *OriginPolicy {
	p := &OriginPolicy{origins: make(map[string]bool, len(origins))}
	for _, o := range origins {
		o = strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = true
		}
	}
	return p
}

// Allowed reports whether r may talk to the widget API.
func (p *OriginPolicy) Allowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if p != nil && (p.any || p.origins[strings.ToLower(origin)]) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// CORS answers cross-origin requests from allowed pages and rejects
// preflights from everywhere else.
func (p *OriginPolicy) CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Add("Vary", "Origin")

		origin := r.Header.Get("Origin")
		allowed := p.Allowed(r)
		if origin != "" && allowed {
			if p != nil && p.any {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-Id")
			h.Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			if !allowed {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
