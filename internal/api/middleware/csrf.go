// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ManuGH/streamcap/internal/api/problem"
)

// CSRFProtection rejects state-changing requests (POST, PUT, DELETE, PATCH)
// sent by a browser page of another origin. The daemon listens on localhost,
// so any web page could otherwise start sessions through the user's browser.
//
// Requests without Origin and Referer come from non-browser clients such as
// streamcapctl and are allowed.
func CSRFProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	originsMap := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		originsMap[strings.TrimSuffix(origin, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
			default:
				next.ServeHTTP(w, r)
				return
			}

			requestOrigin := getRequestOrigin(r)
			if requestOrigin == "" || isOriginAllowed(requestOrigin, originsMap, r) {
				next.ServeHTTP(w, r)
				return
			}
			problem.Write(w, r, problem.New(http.StatusForbidden, "request/cross-origin",
				"Cross-origin request rejected", "CSRF_REJECTED",
				"Origin "+requestOrigin+" is not allowed to modify state."))
		})
	}
}

// getRequestOrigin extracts the origin from the Origin header, falling back
// to the Referer.
func getRequestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" {
		return strings.TrimSuffix(origin, "/")
	}
	referer := r.Header.Get("Referer")
	if referer == "" {
		return ""
	}
	refererURL, err := url.Parse(referer)
	if err != nil || refererURL.Host == "" {
		// an unparseable referer still marks a browser request
		return "null"
	}
	return refererURL.Scheme + "://" + refererURL.Host
}

func isOriginAllowed(requestOrigin string, allowedOrigins map[string]bool, r *http.Request) bool {
	if allowedOrigins["*"] || allowedOrigins[requestOrigin] {
		return true
	}
	return isSameOrigin(requestOrigin, r)
}

// isSameOrigin checks if the request origin matches the request's target origin.
func isSameOrigin(requestOrigin string, r *http.Request) bool {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	if r.Host == "" {
		return false
	}
	return requestOrigin == scheme+"://"+r.Host
}
