package middleware

import (
	"net"
	"net/http"

	"github.com/dangerclosesec/orgmgr/internal/audit"
)

// AuditContext copies the caller address into the request context so audit
// events can record it. Mount it after chi's RealIP.
func AuditContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(audit.WithClientIP(r.Context(), ip)))
	})
}
