// internal/wire/wire.go
package wire

import (
	"net/http"

	"identity-core/internal/adaptor"
	"identity-core/internal/usecase"
	"identity-core/pkg/middleware"
	"identity-core/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// App holds the router and the services behind it
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services, handlers and routes from deps
func Wiring(deps usecase.Deps) *App {
	service := usecase.NewService(deps)
	handler := adaptor.NewHandler(service, deps.Log)
	guard := middleware.NewGuard(deps.Tokens, deps.Repo.User)

	router := setupRouter(handler, guard, deps.Config, deps.Log)

	return &App{
		Router:  router,
		Service: service,
	}
}

// setupRouter configures the chi router
func setupRouter(
	handler *adaptor.Handler,
	guard *middleware.Guard,
	config *utils.Config,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.App.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.TokenHeader},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/users", func(r chi.Router) {
		wireAuth(r, handler.Auth, guard)
		wireTwoFactor(r, handler.TwoFactor, guard)
		wireUser(r, handler.User, guard)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
