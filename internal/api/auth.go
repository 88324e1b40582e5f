// Package api implements HTTP handlers and helpers for the wave scheduling service.
package api

import (
	"net/http"
	"strings"
)

type Principal struct {
	Tenant   string
	Role     string // admin, supervisor, worker
	WorkerID string
}

// getPrincipal extracts tenant and role from JWT or headers.
// - If Authorization: Bearer is present, uses configured verifier (dev/hmac/jwks).
// - Else falls back to headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			t := s.normalizeTenantID(pr.Tenant)
			return Principal{Tenant: t, Role: pr.Role, WorkerID: pr.WorkerID}
		}
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := r.Header.Get("X-Role")
	workerID := r.Header.Get("X-Worker-Id")
	if tenant == "" {
		tenant = "t_demo"
	}
	tenant = s.normalizeTenantID(tenant)
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role, WorkerID: workerID}
}

func (s *Server) normalizeTenantID(t string) string {
	return strings.TrimSpace(t)
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanSchedule reports whether the principal may trigger scheduling runs.
func (p Principal) CanSchedule() bool { return p.Role == "admin" || p.Role == "supervisor" }
