package wire

import (
	"net/http"

	"identity-core/internal/adaptor"
	"identity-core/pkg/middleware"

	"github.com/go-chi/chi/v5"
)

// wireUser configures identity reads and admin management
func wireUser(r chi.Router, userHandler *adaptor.UserHandler, guard *middleware.Guard) {
	urlID := func(r *http.Request) string { return chi.URLParam(r, "id") }

	r.Group(func(r chi.Router) {
		r.Use(guard.Authenticate())

		// GET /api/users/{id} - own record, or any record for admins
		r.With(middleware.RequireSelfOrAdmin(urlID)).Get("/{id}", userHandler.GetUser)

		// ==================== ADMIN ROUTES ====================
		r.With(middleware.RequireAdmin()).Get("/", userHandler.GetAllUsers)       // GET /api/users?page=1&per_page=10
		r.With(middleware.RequireAdmin()).Delete("/{id}", userHandler.DeleteUser) // DELETE /api/users/{id}
	})
}
