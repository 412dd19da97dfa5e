package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSConfig configures cross-origin access to the API.
type CORSConfig struct {
	// Origins lists the allowed origins. Empty or "*" allows any origin.
	Origins []string
	// AllowCredentials makes the middleware echo the caller origin instead
	// of the wildcard.
	AllowCredentials bool
	// MaxAge is how long browsers may cache a preflight answer.
	MaxAge time.Duration
}

const corsAllowMethods = "GET, POST, OPTIONS"

type corsPolicy struct {
	any         bool
	origins     map[string]struct{}
	credentials bool
	maxAge      string
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		any:         len(cfg.Origins) == 0,
		origins:     make(map[string]struct{}, len(cfg.Origins)),
		credentials: cfg.AllowCredentials,
	}
	for _, o := range cfg.Origins {
		if o == "*" {
			p.any = true
			continue
		}
		p.origins[strings.ToLower(strings.TrimSuffix(o, "/"))] = struct{}{}
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(int(cfg.MaxAge.Seconds()))
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for origin, or
// "" when the origin is rejected.
func (p *corsPolicy) allowOrigin(origin string) string {
	switch {
	case origin == "":
		return ""
	case p.any && !p.credentials:
		return "*"
	case p.any:
		return origin
	}
	if _, ok := p.origins[strings.ToLower(origin)]; ok {
		return origin
	}
	return ""
}

// CORS answers preflight requests and decorates actual requests with the
// allow headers of cfg.
func CORS(cfg CORSConfig) Middleware {
	p := newCORSPolicy(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			allowed := p.allowOrigin(r.Header.Get("Origin"))

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Add("Vary", "Access-Control-Request-Method")
				h.Add("Vary", "Access-Control-Request-Headers")
				if allowed != "" {
					h.Set("Access-Control-Allow-Origin", allowed)
					h.Set("Access-Control-Allow-Methods", corsAllowMethods)
					if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
						h.Set("Access-Control-Allow-Headers", req)
					}
					if p.credentials {
						h.Set("Access-Control-Allow-Credentials", "true")
					}
					if p.maxAge != "" {
						h.Set("Access-Control-Max-Age", p.maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				h.Set("Access-Control-Expose-Headers", RequestIDHeader)
				if p.credentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
