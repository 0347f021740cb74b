package middleware

import (
	"net/http"

	"dpp-certification/internal/domain"

	"go.uber.org/zap"
)

// RequireAdmin middleware ensures the user has admin role
func RequireAdmin(logger *zap.Logger) func(http.Handler) http.Handler {
	return RequireRole([]domain.Role{domain.RoleAdmin}, logger)
}

// RequireRole middleware ensures the user has one of the specified roles.
// Ownership checks happen in the services; this only gates by role.
func RequireRole(allowedRoles []domain.Role, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRole(r.Context())
			if !ok {
				logger.Warn("Role not found in context")
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			allowed := false
			for _, allowedRole := range allowedRoles {
				if role == allowedRole {
					allowed = true
					break
				}
			}

			if !allowed {
				names := make([]string, len(allowedRoles))
				for i, r := range allowedRoles {
					names[i] = string(r)
				}
				logger.Warn("User role not authorized",
					zap.String("role", string(role)),
					zap.Strings("allowed_roles", names),
				)
				RespondWithError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
