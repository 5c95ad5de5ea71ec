package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

const corsMaxAge = 86400

var (
	corsAllowMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsAllowHeaders = "Accept, Authorization, Content-Type, Origin, X-Requested-With, Cache-Control"
)

// CORS answers cross-origin requests from an allowlist of browser origins.
type CORS struct {
	origins     map[string]struct{}
	allowAll    bool
	credentials bool
}

// NewCORS builds the middleware. A "*" entry behaves like allowAll, and
// credentials are never allowed together with a wildcard origin.
func NewCORS(origins []string, allowAll, credentials bool) *CORS {
	c := &CORS{origins: make(map[string]struct{}, len(origins)), allowAll: allowAll}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			c.allowAll = true
			continue
		}
		if o != "" {
			c.origins[o] = struct{}{}
		}
	}
	c.credentials = credentials && !c.allowAll
	return c
}

func (c *CORS) allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

// Handler wraps next. It must sit outside the router so preflights reach it
// before method matching.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Add("Vary", "Origin")
		preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

		if !c.allowed(origin) {
			if preflight {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if c.allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		if c.credentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if preflight {
			w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)
			w.Header().Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
