package api

import (
	"net/http"
	"strings"

	"wasteroute/internal/auth"
)

type Principal struct {
	Subject string
	Role    string
}

// getPrincipal extracts the caller from a bearer token, or in dev mode from
// the X-Role header. An unauthenticated caller has an empty role.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Subject: pr.Subject, Role: pr.Role}
		}
		return Principal{}
	}
	if s.Auth == nil || s.Auth.Mode == auth.ModeDev {
		return Principal{Subject: r.Header.Get("X-Subject"), Role: strings.ToLower(r.Header.Get("X-Role"))}
	}
	return Principal{}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// admin guards administrative endpoints.
func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := s.getPrincipal(r)
		if p.Role == "" {
			writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid credentials", r.URL.Path)
			return
		}
		if !p.IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		next(w, r)
	}
}
